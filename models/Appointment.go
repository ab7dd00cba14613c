package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "BOOKED"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// Appointment is the consulate visit tied to an approved application.
// One per application; rebooking overwrites date and time.
type Appointment struct {
	gorm.Model
	ApplicationID          uint              `json:"applicationID" gorm:"not null;uniqueIndex"`
	Date                   string            `json:"date" gorm:"size:32;not null"`
	Time                   string            `json:"time" gorm:"size:16;not null"`
	Location               string            `json:"location" gorm:"size:256"`
	Status                 AppointmentStatus `json:"status" gorm:"size:16;not null"`
	ConfirmationLetterPath string            `json:"-" gorm:"size:512"`
	// Snapshot of the personal info submitted with the booking.
	PersonalInfo datatypes.JSON `json:"personalInfo,omitempty"`
}
