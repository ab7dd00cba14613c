package routes

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/borderlesste/cavb-visa-sub000/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Application{},
		&models.Document{},
		&models.Appointment{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{FirstName: "Test", LastName: "User", Email: email, Password: "x", Role: "applicant"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return &user
}

func uploadAll(t *testing.T, db *gorm.DB, userID, appID uint) {
	t.Helper()
	var docs []models.Document
	if err := db.Where("application_id = ?", appID).Find(&docs).Error; err != nil {
		t.Fatalf("loading documents: %v", err)
	}
	for _, doc := range docs {
		if _, _, err := applyDocumentUpload(db, userID, doc.ID, doc.Type+".pdf", "/tmp/"+doc.Type); err != nil {
			t.Fatalf("uploading %s: %v", doc.Type, err)
		}
	}
}

func verifyAll(t *testing.T, db *gorm.DB, appID uint) {
	t.Helper()
	var docs []models.Document
	if err := db.Where("application_id = ?", appID).Find(&docs).Error; err != nil {
		t.Fatalf("loading documents: %v", err)
	}
	for _, doc := range docs {
		if _, err := adminReviewDocument(db, appID, doc.ID, models.DocumentVerified, ""); err != nil {
			t.Fatalf("verifying %s: %v", doc.Type, err)
		}
	}
}

func TestCreateApplicationChecklist(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "checklist@example.com")

	cases := []struct {
		visaType models.VisaType
		specific string
	}{
		{models.VisaTypeVitemIII, "Work Contract (VITEM III)"},
		{models.VisaTypeVitemXI, "Proof of Family Ties (VITEM XI)"},
	}

	for _, tc := range cases {
		app, err := createApplication(db, user.ID, tc.visaType)
		if err != nil {
			t.Fatalf("create %s: %v", tc.visaType, err)
		}
		if app.Status != models.StatusPendingDocuments {
			t.Fatalf("expected PENDING_DOCUMENTS, got %s", app.Status)
		}

		var docs []models.Document
		db.Where("application_id = ?", app.ID).Find(&docs)
		if len(docs) != 5 {
			t.Fatalf("expected 5 documents for %s, got %d", tc.visaType, len(docs))
		}
		types := map[string]bool{}
		for _, doc := range docs {
			if doc.Status != models.DocumentMissing {
				t.Fatalf("expected MISSING, got %s", doc.Status)
			}
			types[doc.Type] = true
		}
		for _, want := range []string{"Passport", "Birth Certificate", "Police Record", "Identity Document", tc.specific} {
			if !types[want] {
				t.Fatalf("checklist for %s missing %q", tc.visaType, want)
			}
		}
	}
}

func TestCreateApplicationInvalidVisaType(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "invalid@example.com")

	if _, err := createApplication(db, user.ID, "TOURIST"); !errors.Is(err, ErrInvalidVisaType) {
		t.Fatalf("expected ErrInvalidVisaType, got %v", err)
	}

	var count int64
	db.Model(&models.Application{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no applications, got %d", count)
	}
}

func TestApplicationQuota(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "quota@example.com")

	for i := 0; i < models.MaxApplicationsPerUser; i++ {
		if _, err := createApplication(db, user.ID, models.VisaTypeVitemIII); err != nil {
			t.Fatalf("application %d: %v", i+1, err)
		}
	}

	if _, err := createApplication(db, user.ID, models.VisaTypeVitemXI); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	var apps, docs int64
	db.Model(&models.Application{}).Where("user_id = ?", user.ID).Count(&apps)
	db.Model(&models.Document{}).Count(&docs)
	if apps != int64(models.MaxApplicationsPerUser) {
		t.Fatalf("expected %d applications, got %d", models.MaxApplicationsPerUser, apps)
	}
	if docs != int64(models.MaxApplicationsPerUser*5) {
		t.Fatalf("6th attempt leaked documents: %d", docs)
	}
}

func TestStatusRecomputeOnUpload(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "recompute@example.com")

	app, err := createApplication(db, user.ID, models.VisaTypeVitemIII)
	if err != nil {
		t.Fatal(err)
	}

	var docs []models.Document
	db.Where("application_id = ?", app.ID).Order("id").Find(&docs)

	// All but one uploaded: still PENDING_DOCUMENTS.
	for _, doc := range docs[:len(docs)-1] {
		_, got, upErr := applyDocumentUpload(db, user.ID, doc.ID, "f.pdf", "/tmp/f")
		if upErr != nil {
			t.Fatal(upErr)
		}
		if got.Status != models.StatusPendingDocuments {
			t.Fatalf("expected PENDING_DOCUMENTS with missing docs, got %s", got.Status)
		}
	}

	// Last upload tips it into review.
	_, got, upErr := applyDocumentUpload(db, user.ID, docs[len(docs)-1].ID, "f.pdf", "/tmp/f")
	if upErr != nil {
		t.Fatal(upErr)
	}
	if got.Status != models.StatusInReview {
		t.Fatalf("expected IN_REVIEW with all docs uploaded, got %s", got.Status)
	}

	// A rejection followed by an unrelated upload moves it backward.
	if _, err := adminReviewDocument(db, app.ID, docs[0].ID, models.DocumentRejected, "blurry scan"); err != nil {
		t.Fatal(err)
	}
	_, got, upErr = applyDocumentUpload(db, user.ID, docs[1].ID, "f2.pdf", "/tmp/f2")
	if upErr != nil {
		t.Fatal(upErr)
	}
	if got.Status != models.StatusPendingDocuments {
		t.Fatalf("expected backward transition to PENDING_DOCUMENTS, got %s", got.Status)
	}

	// Re-uploading the rejected document clears the reason and restores review.
	doc, got, upErr := applyDocumentUpload(db, user.ID, docs[0].ID, "f3.pdf", "/tmp/f3")
	if upErr != nil {
		t.Fatal(upErr)
	}
	var reloaded models.Document
	db.First(&reloaded, doc.ID)
	if reloaded.RejectionReason != "" {
		t.Fatalf("expected rejection reason cleared, got %q", reloaded.RejectionReason)
	}
	if got.Status != models.StatusInReview {
		t.Fatalf("expected IN_REVIEW after re-upload, got %s", got.Status)
	}
}

func TestUploadForeignDocument(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	intruder := createTestUser(t, db, "intruder@example.com")

	app, _ := createApplication(db, owner.ID, models.VisaTypeVitemIII)
	var doc models.Document
	db.Where("application_id = ?", app.ID).First(&doc)

	if _, _, err := applyDocumentUpload(db, intruder.ID, doc.ID, "f.pdf", "/tmp/f"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestAdminApprovalPrecondition(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "precondition@example.com")

	app, _ := createApplication(db, user.ID, models.VisaTypeVitemIII)
	uploadAll(t, db, user.ID, app.ID)

	// Uploaded but unverified documents block approval.
	if _, err := adminSetApplicationStatus(db, app.ID, models.StatusApproved); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}

	verifyAll(t, db, app.ID)
	approved, err := adminSetApplicationStatus(db, app.ID, models.StatusApproved)
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != models.StatusApproved {
		t.Fatalf("expected APPROVED, got %s", approved.Status)
	}

	// Rejection carries no precondition.
	if _, err := adminSetApplicationStatus(db, app.ID, models.StatusRejected); err != nil {
		t.Fatal(err)
	}
}

func TestSchedulingEligibility(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "schedule@example.com")

	app, _ := createApplication(db, user.ID, models.VisaTypeVitemIII)
	uploadAll(t, db, user.ID, app.ID)

	// Not approved yet.
	if _, _, err := scheduleAppointment(db, user.ID, app.ID, "2026-10-01", "09:30", "", nil, nil); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible before approval, got %v", err)
	}

	// Approved but identity document merely uploaded.
	db.Model(&models.Application{}).Where("id = ?", app.ID).Update("status", models.StatusApproved)
	if _, _, err := scheduleAppointment(db, user.ID, app.ID, "2026-10-01", "09:30", "", nil, nil); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible without verified identity document, got %v", err)
	}

	var idDoc models.Document
	db.Where("application_id = ? AND type = ?", app.ID, models.DocumentTypeIdentityDocument).First(&idDoc)
	if _, err := adminReviewDocument(db, app.ID, idDoc.ID, models.DocumentVerified, ""); err != nil {
		t.Fatal(err)
	}

	info := &PersonalInfo{DateOfBirth: "1990-04-12", PassportNumber: "X1234567", Nationality: "Haitian"}
	appt, got, err := scheduleAppointment(db, user.ID, app.ID, "2026-10-01", "09:30", "Consulate, Port-au-Prince", info, []byte(`{"passportNumber":"X1234567"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusAppointmentScheduled {
		t.Fatalf("expected APPOINTMENT_SCHEDULED, got %s", got.Status)
	}
	if appt.Status != models.AppointmentConfirmed {
		t.Fatalf("expected CONFIRMED appointment, got %s", appt.Status)
	}

	var updatedUser models.User
	db.First(&updatedUser, user.ID)
	if updatedUser.PassportNumber != "X1234567" || updatedUser.Nationality != "Haitian" {
		t.Fatalf("personal info not applied: %+v", updatedUser)
	}

	// Rebooking overwrites rather than duplicating.
	db.Model(&models.Application{}).Where("id = ?", app.ID).Update("status", models.StatusApproved)
	rebooked, _, err := scheduleAppointment(db, user.ID, app.ID, "2026-11-15", "14:00", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rebooked.Date != "2026-11-15" || rebooked.Time != "14:00" {
		t.Fatalf("rebooking did not overwrite: %+v", rebooked)
	}
	var count int64
	db.Model(&models.Appointment{}).Where("application_id = ?", app.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single appointment row, got %d", count)
	}
}

func TestEditApplication(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "edit@example.com")

	app, _ := createApplication(db, user.ID, models.VisaTypeVitemIII)
	var oldDocs []models.Document
	db.Where("application_id = ?", app.ID).Find(&oldDocs)
	uploadAll(t, db, user.ID, app.ID)

	// Same visa type: no-op, progress kept.
	same, err := editApplication(db, user.ID, app.ID, models.VisaTypeVitemIII)
	if err != nil {
		t.Fatal(err)
	}
	var kept int64
	db.Model(&models.Document{}).Where("application_id = ? AND status = ?", app.ID, models.DocumentUploaded).Count(&kept)
	if kept != 5 || same.VisaType != models.VisaTypeVitemIII {
		t.Fatalf("no-op edit changed state: %d uploaded docs", kept)
	}

	// New visa type: checklist rebuilt, progress discarded.
	edited, err := editApplication(db, user.ID, app.ID, models.VisaTypeVitemXI)
	if err != nil {
		t.Fatal(err)
	}
	if edited.Status != models.StatusPendingDocuments {
		t.Fatalf("expected status reset, got %s", edited.Status)
	}
	for _, old := range oldDocs {
		var gone models.Document
		if err := db.First(&gone, old.ID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
			t.Fatalf("old document %d still resolves", old.ID)
		}
	}
	var fresh []models.Document
	db.Where("application_id = ?", app.ID).Find(&fresh)
	if len(fresh) != 5 {
		t.Fatalf("expected 5 fresh documents, got %d", len(fresh))
	}
	for _, doc := range fresh {
		if doc.Status != models.DocumentMissing {
			t.Fatalf("expected fresh MISSING documents, got %s", doc.Status)
		}
	}

	// Locked once approved.
	db.Model(&models.Application{}).Where("id = ?", app.ID).Update("status", models.StatusApproved)
	if _, err := editApplication(db, user.ID, app.ID, models.VisaTypeVitemIII); !errors.Is(err, ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
	var unchanged models.Application
	db.First(&unchanged, app.ID)
	if unchanged.VisaType != models.VisaTypeVitemXI || unchanged.Status != models.StatusApproved {
		t.Fatalf("failed edit mutated the application: %+v", unchanged)
	}
}

func TestDeleteApplication(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "delete@example.com")

	app, _ := createApplication(db, user.ID, models.VisaTypeVitemIII)
	uploadAll(t, db, user.ID, app.ID)

	// Locked while approved.
	db.Model(&models.Application{}).Where("id = ?", app.ID).Update("status", models.StatusApproved)
	if err := deleteApplication(db, user.ID, app.ID); !errors.Is(err, ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
	var docCount int64
	db.Model(&models.Document{}).Where("application_id = ?", app.ID).Count(&docCount)
	if docCount != 5 {
		t.Fatalf("failed delete removed documents: %d left", docCount)
	}

	// Deletable again in review; cascade removes everything.
	db.Model(&models.Application{}).Where("id = ?", app.ID).Update("status", models.StatusInReview)
	if err := deleteApplication(db, user.ID, app.ID); err != nil {
		t.Fatal(err)
	}
	var appCount int64
	db.Model(&models.Application{}).Where("id = ?", app.ID).Count(&appCount)
	db.Model(&models.Document{}).Where("application_id = ?", app.ID).Count(&docCount)
	if appCount != 0 || docCount != 0 {
		t.Fatalf("cascade incomplete: %d applications, %d documents", appCount, docCount)
	}
}

func TestEndToEndVitemXI(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "endtoend@example.com")

	app, err := createApplication(db, user.ID, models.VisaTypeVitemXI)
	if err != nil {
		t.Fatal(err)
	}
	var docs []models.Document
	db.Where("application_id = ?", app.ID).Find(&docs)
	if len(docs) != 5 {
		t.Fatalf("expected 5 documents, got %d", len(docs))
	}
	found := false
	for _, doc := range docs {
		if doc.Type == "Proof of Family Ties (VITEM XI)" {
			found = true
		}
	}
	if !found {
		t.Fatal("missing visa-specific document")
	}

	uploadAll(t, db, user.ID, app.ID)
	var inReview models.Application
	db.First(&inReview, app.ID)
	if inReview.Status != models.StatusInReview {
		t.Fatalf("expected IN_REVIEW, got %s", inReview.Status)
	}

	verifyAll(t, db, app.ID)
	if _, err := adminSetApplicationStatus(db, app.ID, models.StatusApproved); err != nil {
		t.Fatal(err)
	}

	appt, scheduled, err := scheduleAppointment(db, user.ID, app.ID, "2026-09-20", "10:00", "Consulate", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != models.AppointmentConfirmed || scheduled.Status != models.StatusAppointmentScheduled {
		t.Fatalf("unexpected final state: appointment %s, application %s", appt.Status, scheduled.Status)
	}

	if err := deleteApplication(db, user.ID, app.ID); !errors.Is(err, ErrImmutable) {
		t.Fatalf("expected delete to be refused after scheduling, got %v", err)
	}
}
