package routes

import (
	"errors"
	"log"
	"strconv"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/services"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// ApplicationView is the full applicant-facing shape: the application row
// plus its documents and appointment, if any.
type ApplicationView struct {
	ID            uint                     `json:"id"`
	VisaType      models.VisaType          `json:"visaType"`
	VisaTypeLabel string                   `json:"visaTypeLabel"`
	Status        models.ApplicationStatus `json:"status"`
	CreatedAt     string                   `json:"createdAt"`
	UpdatedAt     string                   `json:"updatedAt"`
	Documents     []models.Document        `json:"documents"`
	Appointment   *models.Appointment      `json:"appointment,omitempty"`
}

func applicationView(app *models.Application) ApplicationView {
	view := ApplicationView{
		ID:            app.ID,
		VisaType:      app.VisaType,
		VisaTypeLabel: models.VisaTypeLabel(app.VisaType),
		Status:        app.Status,
		CreatedAt:     app.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     app.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Documents:     app.Documents,
		Appointment:   app.Appointment,
	}
	if view.Documents == nil {
		view.Documents = []models.Document{}
	}
	return view
}

func loadApplicationView(appID uint) (*models.Application, error) {
	var app models.Application
	err := storage.DB.Preload("Documents").Preload("Appointment").First(&app, appID).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// CreateApplication starts a new application for the selected visa type and
// materializes its document checklist.
func CreateApplication(ctx iris.Context) {
	var input CreateApplicationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	claims := jwt.Get(ctx).(*utils.AccessToken)

	app, err := createApplication(storage.DB, claims.ID, models.VisaType(input.VisaType))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidVisaType):
			utils.JSONError(ctx, iris.StatusBadRequest, "invalid_visa_type", "unrecognized visa type")
		case errors.Is(err, ErrQuotaExceeded):
			utils.JSONError(ctx, iris.StatusConflict, "quota_exceeded", "you already hold the maximum number of applications")
		default:
			log.Printf("create application failed for user %d: %v", claims.ID, err)
			utils.CreateInternalServerError(ctx)
		}
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(applicationView(app))
}

// GetCurrentApplication returns the caller's most recent application.
func GetCurrentApplication(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var app models.Application
	err := storage.DB.Preload("Documents").Preload("Appointment").
		Where("user_id = ?", claims.ID).
		Order("created_at DESC").
		First(&app).Error
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(applicationView(&app))
}

// GetApplications lists every application the caller holds.
func GetApplications(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var apps []models.Application
	err := storage.DB.Preload("Documents").Preload("Appointment").
		Where("user_id = ?", claims.ID).
		Order("created_at DESC").
		Find(&apps).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	views := make([]ApplicationView, 0, len(apps))
	for i := range apps {
		views = append(views, applicationView(&apps[i]))
	}
	ctx.JSON(iris.Map{"data": views})
}

// GetApplicationByID returns one application; owners and admins only.
func GetApplicationByID(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	appID, err := strconv.Atoi(ctx.Params().Get("id"))
	if err != nil || appID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid application ID")
		return
	}

	app, loadErr := loadApplicationView(uint(appID))
	if loadErr != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if app.UserID != claims.ID && claims.Role != "admin" {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	ctx.JSON(applicationView(app))
}

// UpdateApplication changes the visa type, rebuilding the checklist.
func UpdateApplication(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	appID, err := strconv.Atoi(ctx.Params().Get("id"))
	if err != nil || appID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid application ID")
		return
	}

	var input CreateApplicationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	app, editErr := editApplication(storage.DB, claims.ID, uint(appID), models.VisaType(input.VisaType))
	if editErr != nil {
		switch {
		case errors.Is(editErr, ErrInvalidVisaType):
			utils.JSONError(ctx, iris.StatusBadRequest, "invalid_visa_type", "unrecognized visa type")
		case errors.Is(editErr, ErrApplicationNotFound):
			utils.CreateNotFound(ctx)
		case errors.Is(editErr, ErrImmutable):
			utils.JSONError(ctx, iris.StatusConflict, "immutable", "application can no longer be edited")
		default:
			log.Printf("edit application %d failed: %v", appID, editErr)
			utils.CreateInternalServerError(ctx)
		}
		return
	}

	ctx.JSON(applicationView(app))
}

// DeleteApplication removes an application with its documents and
// appointment. Refused once approved or scheduled.
func DeleteApplication(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	appID, err := strconv.Atoi(ctx.Params().Get("id"))
	if err != nil || appID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid application ID")
		return
	}

	if delErr := deleteApplication(storage.DB, claims.ID, uint(appID)); delErr != nil {
		switch {
		case errors.Is(delErr, ErrApplicationNotFound):
			utils.CreateNotFound(ctx)
		case errors.Is(delErr, ErrImmutable):
			utils.JSONError(ctx, iris.StatusConflict, "immutable", "application can no longer be deleted")
		default:
			log.Printf("delete application %d failed: %v", appID, delErr)
			utils.CreateInternalServerError(ctx)
		}
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// UploadDocument ingests one multipart file for a checklist document owned
// by the caller and recomputes the application status.
func UploadDocument(notifier *services.NotificationService) iris.Handler {
	return func(ctx iris.Context) {
		claims := jwt.Get(ctx).(*utils.AccessToken)
		docID, err := strconv.Atoi(ctx.Params().Get("docID"))
		if err != nil || docID <= 0 {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid document ID")
			return
		}

		file, header, err := ctx.FormFile("file")
		if err != nil {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "file is required")
			return
		}
		defer file.Close()

		// Resolve ownership first so nothing is written to disk for a
		// document that is not the caller's.
		var owned int64
		storage.DB.Model(&models.Document{}).
			Joins("JOIN applications ON applications.id = documents.application_id").
			Where("documents.id = ? AND applications.user_id = ? AND applications.deleted_at IS NULL", docID, claims.ID).
			Count(&owned)
		if owned == 0 {
			utils.JSONError(ctx, iris.StatusNotFound, "document_not_found", "document not found")
			return
		}

		var existing models.Document
		if err := storage.DB.First(&existing, docID).Error; err != nil {
			utils.JSONError(ctx, iris.StatusNotFound, "document_not_found", "document not found")
			return
		}

		path, saveErr := storage.SaveDocumentFile(existing.ApplicationID, existing.ID, header.Filename, file)
		if saveErr != nil {
			log.Printf("saving upload for document %d failed: %v", docID, saveErr)
			utils.CreateInternalServerError(ctx)
			return
		}

		doc, app, upErr := applyDocumentUpload(storage.DB, claims.ID, uint(docID), header.Filename, path)
		if upErr != nil {
			switch {
			case errors.Is(upErr, ErrDocumentNotFound):
				utils.JSONError(ctx, iris.StatusNotFound, "document_not_found", "document not found")
			default:
				log.Printf("document upload %d failed: %v", docID, upErr)
				utils.CreateInternalServerError(ctx)
			}
			return
		}

		if app.Status == models.StatusInReview {
			appID := app.ID
			go notifier.Notify(claims.ID,
				"Application in review",
				"All required documents are in. Your application is now under review.",
				models.NotificationTypeApplication, &appID)
		}

		ctx.JSON(iris.Map{"document": doc, "applicationStatus": app.Status})
	}
}

type CreateApplicationInput struct {
	VisaType string `json:"visaType" validate:"required"`
}
