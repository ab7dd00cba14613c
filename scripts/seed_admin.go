package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/storage"

	"golang.org/x/crypto/bcrypt"
)

// Creates (or promotes) the staff account named by ADMIN_EMAIL / ADMIN_PASSWORD.
func main() {
	db := storage.InitializeDB()

	email := strings.ToLower(os.Getenv("ADMIN_EMAIL"))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}

	var user models.User
	result := db.Where("email = ?", email).Limit(1).Find(&user)
	if result.Error != nil {
		log.Fatalf("Error looking up admin user: %v", result.Error)
	}

	if result.RowsAffected > 0 {
		if err := db.Model(&user).Update("role", "admin").Error; err != nil {
			log.Fatalf("Error promoting user: %v", err)
		}
		fmt.Printf("Promoted existing user %s to admin\n", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing password: %v", err)
	}

	user = models.User{
		FirstName:     "Case",
		LastName:      "Officer",
		Email:         email,
		Password:      string(hash),
		EmailVerified: true,
		Role:          "admin",
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Error creating admin user: %v", err)
	}

	fmt.Printf("Admin user %s created\n", email)
}
