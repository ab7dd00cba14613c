package models

import "gorm.io/gorm"

const (
	NotificationTypeDocument    = "document"
	NotificationTypeApplication = "application"
	NotificationTypeAppointment = "appointment"
	NotificationTypeMessage     = "message"
	NotificationTypeSystem      = "system"
)

type Notification struct {
	gorm.Model
	UserID        uint   `json:"userID" gorm:"not null;index"`
	Title         string `json:"title" gorm:"size:256"`
	Message       string `json:"message" gorm:"type:text"`
	Type          string `json:"type" gorm:"size:32;index"`
	Read          bool   `json:"read" gorm:"default:false;index"`
	ApplicationID *uint  `json:"applicationID"`
}
