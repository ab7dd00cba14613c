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
)

// AdminListApplications pages through every application, optionally
// filtered by status, with applicant, documents and appointment preloaded.
func AdminListApplications(ctx iris.Context) {
	page, _ := ctx.URLParamInt("page")
	if page < 1 {
		page = 1
	}
	perPage, _ := ctx.URLParamInt("per_page")
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.Application{})
	if status := ctx.URLParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var apps []models.Application
	err := q.Preload("User").Preload("Documents").Preload("Appointment").
		Order("created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&apps).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.JSONPage(ctx, apps, page, perPage, total)
}

// AdminReviewDocument verifies or rejects one document of an application.
// Rejection requires a non-empty reason, persisted and surfaced to the
// applicant.
func AdminReviewDocument(notifier *services.NotificationService) iris.Handler {
	return func(ctx iris.Context) {
		appID, err := strconv.Atoi(ctx.Params().Get("id"))
		docID, err2 := strconv.Atoi(ctx.Params().Get("docID"))
		if err != nil || err2 != nil || appID <= 0 || docID <= 0 {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid IDs")
			return
		}

		var input ReviewDocumentInput
		if err := ctx.ReadJSON(&input); err != nil {
			utils.HandleValidationErrors(err, ctx)
			return
		}

		status := models.DocumentStatus(input.Status)
		if status != models.DocumentVerified && status != models.DocumentRejected {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "status must be VERIFIED or REJECTED")
			return
		}
		if status == models.DocumentRejected && input.Reason == "" {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "a rejection reason is required")
			return
		}

		var before models.Document
		_ = storage.DB.Where("id = ? AND application_id = ?", docID, appID).First(&before).Error

		doc, reviewErr := adminReviewDocument(storage.DB, uint(appID), uint(docID), status, input.Reason)
		if reviewErr != nil {
			switch {
			case errors.Is(reviewErr, ErrDocumentNotFound):
				utils.CreateNotFound(ctx)
			default:
				log.Printf("review document %d failed: %v", docID, reviewErr)
				utils.CreateInternalServerError(ctx)
			}
			return
		}

		utils.Audit(ctx, "document.review", "document", doc.ID, before, doc)

		var app models.Application
		if err := storage.DB.First(&app, doc.ApplicationID).Error; err == nil {
			applicationID := app.ID
			title := "Document verified"
			body := doc.Type + " has been verified."
			if status == models.DocumentRejected {
				title = "Document rejected"
				body = doc.Type + " was rejected: " + input.Reason
			}
			go notifier.Notify(app.UserID, title, body, models.NotificationTypeDocument, &applicationID)
		}

		ctx.JSON(doc)
	}
}

// AdminSetApplicationStatus applies the staff decision. Approval is
// refused unless every document is VERIFIED.
func AdminSetApplicationStatus(notifier *services.NotificationService, mailer *services.Mailer) iris.Handler {
	return func(ctx iris.Context) {
		appID, err := strconv.Atoi(ctx.Params().Get("id"))
		if err != nil || appID <= 0 {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid application ID")
			return
		}

		var input SetApplicationStatusInput
		if err := ctx.ReadJSON(&input); err != nil {
			utils.HandleValidationErrors(err, ctx)
			return
		}

		status := models.ApplicationStatus(input.Status)
		if status != models.StatusApproved && status != models.StatusRejected {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "status must be APPROVED or REJECTED")
			return
		}

		var before models.Application
		_ = storage.DB.First(&before, appID).Error

		app, setErr := adminSetApplicationStatus(storage.DB, uint(appID), status)
		if setErr != nil {
			switch {
			case errors.Is(setErr, ErrApplicationNotFound):
				utils.CreateNotFound(ctx)
			case errors.Is(setErr, ErrPreconditionFailed):
				utils.JSONError(ctx, iris.StatusConflict, "precondition_failed",
					"every document must be VERIFIED before approval")
			default:
				log.Printf("set application %d status failed: %v", appID, setErr)
				utils.CreateInternalServerError(ctx)
			}
			return
		}

		utils.Audit(ctx, "application.decision", "application", app.ID, before.Status, app.Status)

		applicationID := app.ID
		title := "Application approved"
		body := "Your application has been approved. You can now schedule your appointment."
		if status == models.StatusRejected {
			title = "Application rejected"
			body = "Your application has been rejected. Contact us for details."
		}
		go notifier.Notify(app.UserID, title, body, models.NotificationTypeApplication, &applicationID)

		var user models.User
		if err := storage.DB.First(&user, app.UserID).Error; err == nil {
			go mailer.SendDecisionEmail(user.Email, user.FirstName, app)
		}

		ctx.JSON(app)
	}
}

// AdminListAppointments lists upcoming appointments with applicant info.
func AdminListAppointments(ctx iris.Context) {
	var appts []models.Appointment
	err := storage.DB.Order("date ASC, time ASC").Find(&appts).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	entries := make([]iris.Map, 0, len(appts))
	for i := range appts {
		var app models.Application
		if err := storage.DB.Preload("User").First(&app, appts[i].ApplicationID).Error; err != nil {
			continue
		}
		entries = append(entries, iris.Map{
			"appointment":   appts[i],
			"applicationID": app.ID,
			"visaType":      app.VisaType,
			"applicant": iris.Map{
				"id":        app.User.ID,
				"firstName": app.User.FirstName,
				"lastName":  app.User.LastName,
				"email":     app.User.Email,
			},
		})
	}

	ctx.JSON(iris.Map{"data": entries, "meta": iris.Map{}, "links": iris.Map{}})
}

type ReviewDocumentInput struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

type SetApplicationStatusInput struct {
	Status string `json:"status" validate:"required"`
}
