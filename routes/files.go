package routes

import (
	"strconv"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// DownloadDocument serves an uploaded document file to its owner or staff.
func DownloadDocument(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	docID, err := strconv.Atoi(ctx.Params().Get("docID"))
	if err != nil || docID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid document ID")
		return
	}

	var doc models.Document
	if err := storage.DB.First(&doc, docID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if doc.FilePath == "" {
		utils.CreateNotFound(ctx)
		return
	}

	if claims.Role != "admin" {
		var app models.Application
		if err := storage.DB.First(&app, doc.ApplicationID).Error; err != nil || app.UserID != claims.ID {
			ctx.StatusCode(iris.StatusForbidden)
			return
		}
	}

	if err := ctx.SendFile(doc.FilePath, doc.FileName); err != nil {
		utils.CreateNotFound(ctx)
	}
}

// DownloadConfirmationLetter serves the appointment letter PDF.
func DownloadConfirmationLetter(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	appID, err := strconv.Atoi(ctx.Params().Get("id"))
	if err != nil || appID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid application ID")
		return
	}

	var app models.Application
	if err := storage.DB.First(&app, appID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if claims.Role != "admin" && app.UserID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	var appt models.Appointment
	if err := storage.DB.Where("application_id = ?", app.ID).First(&appt).Error; err != nil || appt.ConfirmationLetterPath == "" {
		utils.CreateNotFound(ctx)
		return
	}

	if err := ctx.SendFile(appt.ConfirmationLetterPath, "confirmation-letter.pdf"); err != nil {
		utils.CreateNotFound(ctx)
	}
}
