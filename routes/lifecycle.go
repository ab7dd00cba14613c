package routes

import (
	"errors"

	"github.com/borderlesste/cavb-visa-sub000/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Business-rule failures of the application lifecycle. Handlers map these
// to HTTP statuses; anything else rolls back and surfaces as a 500.
var (
	ErrInvalidVisaType     = errors.New("invalid visa type")
	ErrQuotaExceeded       = errors.New("application quota exceeded")
	ErrApplicationNotFound = errors.New("application not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrImmutable           = errors.New("application can no longer be modified")
	ErrNotEligible         = errors.New("application not eligible for scheduling")
	ErrPreconditionFailed  = errors.New("all documents must be verified first")
)

// lockApplication takes a row lock on the application so concurrent uploads
// cannot interleave their status recomputation. SQLite (tests) serializes
// writers on its own and rejects FOR UPDATE.
func lockApplication(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// createApplication allocates an application in PENDING_DOCUMENTS together
// with its full document checklist, all MISSING.
func createApplication(db *gorm.DB, userID uint, visaType models.VisaType) (*models.Application, error) {
	if !models.ValidVisaType(visaType) {
		return nil, ErrInvalidVisaType
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	var count int64
	if err := tx.Model(&models.Application{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count >= models.MaxApplicationsPerUser {
		return nil, ErrQuotaExceeded
	}

	app := models.Application{
		UserID:   userID,
		VisaType: visaType,
		Status:   models.StatusPendingDocuments,
	}
	if err := tx.Create(&app).Error; err != nil {
		return nil, err
	}

	if err := createChecklist(tx, &app); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func createChecklist(tx *gorm.DB, app *models.Application) error {
	for _, docType := range models.RequiredDocumentTypes(app.VisaType) {
		doc := models.Document{
			ApplicationID: app.ID,
			Type:          docType,
			Status:        models.DocumentMissing,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		app.Documents = append(app.Documents, doc)
	}
	return nil
}

// applyDocumentUpload marks a document UPLOADED with its file metadata,
// clears any prior rejection reason and recomputes the application status
// inside the same transaction.
func applyDocumentUpload(db *gorm.DB, userID, documentID uint, fileName, filePath string) (*models.Document, *models.Application, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, nil, tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	var doc models.Document
	err := tx.Select("documents.*").
		Joins("JOIN applications ON applications.id = documents.application_id").
		Where("documents.id = ? AND applications.user_id = ? AND applications.deleted_at IS NULL", documentID, userID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}

	var app models.Application
	if err := lockApplication(tx).First(&app, doc.ApplicationID).Error; err != nil {
		return nil, nil, err
	}

	updates := map[string]interface{}{
		"status":           models.DocumentUploaded,
		"file_name":        fileName,
		"file_path":        filePath,
		"rejection_reason": "",
	}
	if err := tx.Model(&doc).Updates(updates).Error; err != nil {
		return nil, nil, err
	}

	if err := recomputeStatus(tx, &app); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}
	return &doc, &app, nil
}

// recomputeStatus derives the application status from its document set:
// IN_REVIEW when every document is provided, PENDING_DOCUMENTS otherwise.
// Admin decisions and scheduled appointments are overrides and are left
// alone. Runs both ways, so re-uploading over a rejected document can move
// an application from IN_REVIEW back to PENDING_DOCUMENTS.
func recomputeStatus(tx *gorm.DB, app *models.Application) error {
	if app.Status.Terminal() {
		return nil
	}

	var outstanding int64
	err := tx.Model(&models.Document{}).
		Where("application_id = ? AND status NOT IN ?", app.ID,
			[]models.DocumentStatus{models.DocumentUploaded, models.DocumentVerified}).
		Count(&outstanding).Error
	if err != nil {
		return err
	}

	next := models.StatusPendingDocuments
	if outstanding == 0 {
		next = models.StatusInReview
	}
	if next == app.Status {
		return nil
	}

	if err := tx.Model(app).Update("status", next).Error; err != nil {
		return err
	}
	app.Status = next
	return nil
}

// editApplication changes the visa type. The old checklist is discarded and
// rebuilt from scratch, resetting any review progress. No-op when the type
// is unchanged. Refused once the application is approved or scheduled.
func editApplication(db *gorm.DB, userID, applicationID uint, visaType models.VisaType) (*models.Application, error) {
	if !models.ValidVisaType(visaType) {
		return nil, ErrInvalidVisaType
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	var app models.Application
	err := lockApplication(tx).Where("id = ? AND user_id = ?", applicationID, userID).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}

	if app.Status.Locked() {
		return nil, ErrImmutable
	}
	if app.VisaType == visaType {
		return &app, nil
	}

	if err := tx.Where("application_id = ?", app.ID).Delete(&models.Document{}).Error; err != nil {
		return nil, err
	}

	app.VisaType = visaType
	app.Status = models.StatusPendingDocuments
	app.Documents = nil
	if err := tx.Model(&app).Updates(map[string]interface{}{
		"visa_type": visaType,
		"status":    models.StatusPendingDocuments,
	}).Error; err != nil {
		return nil, err
	}

	if err := createChecklist(tx, &app); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// deleteApplication cascades appointment, then documents, then the
// application row, as one unit. Refused once approved or scheduled.
func deleteApplication(db *gorm.DB, userID, applicationID uint) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	var app models.Application
	err := tx.Where("id = ? AND user_id = ?", applicationID, userID).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrApplicationNotFound
		}
		return err
	}

	if app.Status.Locked() {
		return ErrImmutable
	}

	if err := tx.Where("application_id = ?", app.ID).Delete(&models.Appointment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("application_id = ?", app.ID).Delete(&models.Document{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&app).Error; err != nil {
		return err
	}

	return tx.Commit().Error
}

// PersonalInfo is the optional applicant data submitted with a booking.
type PersonalInfo struct {
	DateOfBirth    string `json:"dateOfBirth"`
	PassportNumber string `json:"passportNumber"`
	Nationality    string `json:"nationality"`
}

// scheduleAppointment books (or rebooks) the appointment for an approved
// application. Eligibility: status APPROVED and a VERIFIED identity
// document. The appointment row is upserted; rebooking overwrites date,
// time and location. Letter generation is handled by the caller so its
// failure cannot roll back the booking.
func scheduleAppointment(db *gorm.DB, userID, applicationID uint, date, timeSlot, location string, info *PersonalInfo, infoJSON []byte) (*models.Appointment, *models.Application, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, nil, tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	var app models.Application
	q := lockApplication(tx).Where("user_id = ?", userID)
	if applicationID != 0 {
		q = q.Where("id = ?", applicationID)
	}
	if err := q.Order("created_at DESC").First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrApplicationNotFound
		}
		return nil, nil, err
	}

	if app.Status != models.StatusApproved {
		return nil, nil, ErrNotEligible
	}

	var verifiedID int64
	err := tx.Model(&models.Document{}).
		Where("application_id = ? AND type = ? AND status = ?",
			app.ID, models.DocumentTypeIdentityDocument, models.DocumentVerified).
		Count(&verifiedID).Error
	if err != nil {
		return nil, nil, err
	}
	if verifiedID == 0 {
		return nil, nil, ErrNotEligible
	}

	if info != nil {
		updates := map[string]interface{}{}
		if info.DateOfBirth != "" {
			updates["date_of_birth"] = info.DateOfBirth
		}
		if info.PassportNumber != "" {
			updates["passport_number"] = info.PassportNumber
		}
		if info.Nationality != "" {
			updates["nationality"] = info.Nationality
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
				return nil, nil, err
			}
		}
	}

	appt := models.Appointment{
		ApplicationID: app.ID,
		Date:          date,
		Time:          timeSlot,
		Location:      location,
		Status:        models.AppointmentConfirmed,
		PersonalInfo:  datatypes.JSON(infoJSON),
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"date", "time", "location", "status", "personal_info", "updated_at"}),
	}).Create(&appt).Error
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Model(&app).Update("status", models.StatusAppointmentScheduled).Error; err != nil {
		return nil, nil, err
	}
	app.Status = models.StatusAppointmentScheduled

	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}

	// OnConflict updates leave the struct ID unset on the update path.
	if appt.ID == 0 {
		_ = db.Where("application_id = ?", app.ID).First(&appt).Error
	}
	return &appt, &app, nil
}

// adminReviewDocument applies a staff decision to one document. Rejection
// carries a reason surfaced to the applicant; verification clears it.
// Does not recompute the application status: the application decision is a
// separate explicit staff action.
func adminReviewDocument(db *gorm.DB, applicationID, documentID uint, status models.DocumentStatus, reason string) (*models.Document, error) {
	var doc models.Document
	err := db.Where("id = ? AND application_id = ?", documentID, applicationID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	updates := map[string]interface{}{"status": status}
	if status == models.DocumentRejected {
		updates["rejection_reason"] = reason
	} else {
		updates["rejection_reason"] = ""
	}
	if err := db.Model(&doc).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// adminSetApplicationStatus applies the staff decision on a whole
// application. Approval re-validates server-side that every document is
// VERIFIED.
func adminSetApplicationStatus(db *gorm.DB, applicationID uint, status models.ApplicationStatus) (*models.Application, error) {
	var app models.Application
	if err := db.First(&app, applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}

	if status == models.StatusApproved {
		var unverified int64
		err := db.Model(&models.Document{}).
			Where("application_id = ? AND status <> ?", app.ID, models.DocumentVerified).
			Count(&unverified).Error
		if err != nil {
			return nil, err
		}
		if unverified > 0 {
			return nil, ErrPreconditionFailed
		}
	}

	if err := db.Model(&app).Update("status", status).Error; err != nil {
		return nil, err
	}
	app.Status = status
	return &app, nil
}
