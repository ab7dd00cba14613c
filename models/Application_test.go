package models

import "testing"

func TestRequiredDocumentTypesDeterministic(t *testing.T) {
	for _, visaType := range []VisaType{VisaTypeVitemIII, VisaTypeVitemXI} {
		first := RequiredDocumentTypes(visaType)
		second := RequiredDocumentTypes(visaType)
		if len(first) != 5 || len(second) != 5 {
			t.Fatalf("expected 5 documents for %s, got %d and %d", visaType, len(first), len(second))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("checklist for %s not deterministic at %d: %q vs %q", visaType, i, first[i], second[i])
			}
		}
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusApproved.Terminal() || !StatusRejected.Terminal() || !StatusAppointmentScheduled.Terminal() {
		t.Fatal("admin decisions and scheduled states must be terminal")
	}
	if StatusPendingDocuments.Terminal() || StatusInReview.Terminal() {
		t.Fatal("derived states must not be terminal")
	}
	if !StatusApproved.Locked() || !StatusAppointmentScheduled.Locked() {
		t.Fatal("approved and scheduled applications are locked")
	}
	if StatusRejected.Locked() {
		t.Fatal("rejected applications remain deletable")
	}
}

func TestValidVisaType(t *testing.T) {
	if !ValidVisaType(VisaTypeVitemIII) || !ValidVisaType(VisaTypeVitemXI) {
		t.Fatal("known visa types rejected")
	}
	if ValidVisaType("TOURIST") || ValidVisaType("") {
		t.Fatal("unknown visa types accepted")
	}
}
