package models

import "gorm.io/gorm"

type VisaType string

const (
	VisaTypeVitemIII VisaType = "VITEM_III"
	VisaTypeVitemXI  VisaType = "VITEM_XI"
)

type ApplicationStatus string

const (
	StatusPendingDocuments     ApplicationStatus = "PENDING_DOCUMENTS"
	StatusInReview             ApplicationStatus = "IN_REVIEW"
	StatusApproved             ApplicationStatus = "APPROVED"
	StatusAppointmentScheduled ApplicationStatus = "APPOINTMENT_SCHEDULED"
	StatusRejected             ApplicationStatus = "REJECTED"
)

// MaxApplicationsPerUser caps concurrent applications held by one user.
const MaxApplicationsPerUser = 5

type Application struct {
	gorm.Model
	UserID      uint              `json:"userID" gorm:"not null;index"`
	User        User              `json:"-" gorm:"foreignKey:UserID"`
	VisaType    VisaType          `json:"visaType" gorm:"size:32;not null"`
	Status      ApplicationStatus `json:"status" gorm:"size:32;not null;index"`
	Documents   []Document        `json:"documents" gorm:"foreignKey:ApplicationID"`
	Appointment *Appointment      `json:"appointment,omitempty" gorm:"foreignKey:ApplicationID"`
}

// ValidVisaType reports whether code is one of the recognized visa types.
func ValidVisaType(code VisaType) bool {
	return code == VisaTypeVitemIII || code == VisaTypeVitemXI
}

// VisaTypeLabel returns the human-readable name shown in views and letters.
func VisaTypeLabel(code VisaType) string {
	switch code {
	case VisaTypeVitemIII:
		return "VITEM III - Work Visa"
	case VisaTypeVitemXI:
		return "VITEM XI - Family Reunion Visa"
	}
	return string(code)
}

// Every application requires these regardless of visa type.
var commonDocumentTypes = []string{
	DocumentTypePassport,
	DocumentTypeBirthCertificate,
	DocumentTypePoliceRecord,
	DocumentTypeIdentityDocument,
}

// RequiredDocumentTypes is the checklist for a visa type: the common set
// plus one visa-specific document. Pure function of the visa type.
func RequiredDocumentTypes(code VisaType) []string {
	types := make([]string, 0, len(commonDocumentTypes)+1)
	types = append(types, commonDocumentTypes...)
	switch code {
	case VisaTypeVitemIII:
		types = append(types, "Work Contract (VITEM III)")
	case VisaTypeVitemXI:
		types = append(types, "Proof of Family Ties (VITEM XI)")
	}
	return types
}

// Terminal reports whether status is an admin override or a scheduled state,
// i.e. no longer derived from the document set.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusAppointmentScheduled || s == StatusRejected
}

// Locked reports whether the application can no longer be edited or deleted.
func (s ApplicationStatus) Locked() bool {
	return s == StatusApproved || s == StatusAppointmentScheduled
}
