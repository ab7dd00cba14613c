package routes

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/services"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// ScheduleAppointment books the consulate visit for an approved
// application. Letter generation and email are best-effort side effects
// that run after the booking transaction committed.
func ScheduleAppointment(notifier *services.NotificationService, mailer *services.Mailer) iris.Handler {
	return func(ctx iris.Context) {
		var input ScheduleAppointmentInput
		if err := ctx.ReadJSON(&input); err != nil {
			utils.HandleValidationErrors(err, ctx)
			return
		}

		claims := jwt.Get(ctx).(*utils.AccessToken)

		var infoJSON []byte
		if input.PersonalInfo != nil {
			infoJSON, _ = json.Marshal(input.PersonalInfo)
		}

		appt, app, err := scheduleAppointment(storage.DB, claims.ID, input.ApplicationID,
			input.Date, input.Time, input.Location, input.PersonalInfo, infoJSON)
		if err != nil {
			switch {
			case errors.Is(err, ErrApplicationNotFound):
				utils.CreateNotFound(ctx)
			case errors.Is(err, ErrNotEligible):
				utils.JSONError(ctx, iris.StatusConflict, "not_eligible",
					"application must be approved and the identity document verified")
			default:
				log.Printf("scheduling for user %d failed: %v", claims.ID, err)
				utils.CreateInternalServerError(ctx)
			}
			return
		}

		var user models.User
		if err := storage.DB.First(&user, claims.ID).Error; err == nil {
			// Letter failure never undoes the booking.
			if letterPath, letterErr := services.GenerateConfirmationLetter(&user, app, appt); letterErr != nil {
				log.Printf("confirmation letter for application %d skipped: %v", app.ID, letterErr)
			} else {
				storage.DB.Model(appt).Update("confirmation_letter_path", letterPath)
				appt.ConfirmationLetterPath = letterPath
			}

			go mailer.SendAppointmentEmail(user.Email, user.FirstName, appt)
		}

		appID := app.ID
		go notifier.Notify(claims.ID,
			"Appointment scheduled",
			"Your appointment is confirmed for "+appt.Date+" at "+appt.Time+".",
			models.NotificationTypeAppointment, &appID)

		ctx.StatusCode(iris.StatusCreated)
		ctx.JSON(iris.Map{"appointment": appt, "applicationStatus": app.Status})
	}
}

type ScheduleAppointmentInput struct {
	ApplicationID uint          `json:"applicationID"`
	Date          string        `json:"date" validate:"required"`
	Time          string        `json:"time" validate:"required"`
	Location      string        `json:"location"`
	PersonalInfo  *PersonalInfo `json:"personalInfo"`
}
