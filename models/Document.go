package models

import "gorm.io/gorm"

type DocumentStatus string

const (
	DocumentMissing  DocumentStatus = "MISSING"
	DocumentUploaded DocumentStatus = "UPLOADED"
	DocumentVerified DocumentStatus = "VERIFIED"
	DocumentRejected DocumentStatus = "REJECTED"
)

const (
	DocumentTypePassport         = "Passport"
	DocumentTypeBirthCertificate = "Birth Certificate"
	DocumentTypePoliceRecord     = "Police Record"
	DocumentTypeIdentityDocument = "Identity Document"
)

type Document struct {
	gorm.Model
	ApplicationID   uint           `json:"applicationID" gorm:"not null;index"`
	Type            string         `json:"type" gorm:"size:128;not null"`
	Status          DocumentStatus `json:"status" gorm:"size:16;not null;index"`
	FileName        string         `json:"fileName" gorm:"size:256"`
	FilePath        string         `json:"-" gorm:"size:512"`
	RejectionReason string         `json:"rejectionReason,omitempty" gorm:"size:1024"`
}

// Provided reports whether the document counts toward review readiness.
func (s DocumentStatus) Provided() bool {
	return s == DocumentUploaded || s == DocumentVerified
}
