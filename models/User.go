package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email" gorm:"uniqueIndex;size:256"`
	Password       string `json:"-"`
	EmailVerified  bool   `json:"emailVerified"`
	DateOfBirth    string `json:"dateOfBirth" gorm:"size:32"`
	PassportNumber string `json:"passportNumber" gorm:"size:64"`
	Nationality    string `json:"nationality" gorm:"size:64"`
	Role           string `json:"role" gorm:"type:varchar(20);default:applicant;index"` // applicant, admin
}
