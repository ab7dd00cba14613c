package services

import (
	"fmt"
	"time"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/storage"

	"github.com/jung-kurt/gofpdf"
)

// GenerateConfirmationLetter renders the appointment confirmation PDF and
// returns the path it was written to. Callers treat failure as non-critical.
func GenerateConfirmationLetter(user *models.User, app *models.Application, appt *models.Appointment) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Appointment Confirmation")
	pdf.Ln(18)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Issued: %s", time.Now().Format("2 January 2006")))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Applicant")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Name: %s %s", user.FirstName, user.LastName))
	pdf.Ln(7)
	if user.PassportNumber != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Passport: %s", user.PassportNumber))
		pdf.Ln(7)
	}
	if user.Nationality != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Nationality: %s", user.Nationality))
		pdf.Ln(7)
	}
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Application")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Reference: APP-%06d", app.ID))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Visa type: %s", models.VisaTypeLabel(app.VisaType)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Appointment")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Date: %s", appt.Date))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Time: %s", appt.Time))
	pdf.Ln(7)
	if appt.Location != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Location: %s", appt.Location))
		pdf.Ln(7)
	}
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Please bring this letter, your passport and the originals of all submitted documents to your appointment.", "", "L", false)

	path := storage.LetterPath(app.ID)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", err
	}
	return path, nil
}
