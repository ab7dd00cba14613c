package routes

import (
	"time"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/storage"

	"github.com/kataras/iris/v12"
)

// GET /api/admin/analytics
func AdminAnalytics(ctx iris.Context) {
	byStatus := iris.Map{}
	for _, status := range []models.ApplicationStatus{
		models.StatusPendingDocuments,
		models.StatusInReview,
		models.StatusApproved,
		models.StatusAppointmentScheduled,
		models.StatusRejected,
	} {
		var count int64
		storage.DB.Model(&models.Application{}).Where("status = ?", status).Count(&count)
		byStatus[string(status)] = count
	}

	byVisaType := iris.Map{}
	for _, visaType := range []models.VisaType{models.VisaTypeVitemIII, models.VisaTypeVitemXI} {
		var count int64
		storage.DB.Model(&models.Application{}).Where("visa_type = ?", visaType).Count(&count)
		byVisaType[string(visaType)] = count
	}

	var totalUsers, pendingDocs int64
	storage.DB.Model(&models.User{}).Where("role <> ?", "admin").Count(&totalUsers)
	storage.DB.Model(&models.Document{}).Where("status = ?", models.DocumentUploaded).Count(&pendingDocs)

	since7 := time.Now().AddDate(0, 0, -7)
	since30 := time.Now().AddDate(0, 0, -30)
	var newApps7, newApps30, upcoming int64
	storage.DB.Model(&models.Application{}).Where("created_at >= ?", since7).Count(&newApps7)
	storage.DB.Model(&models.Application{}).Where("created_at >= ?", since30).Count(&newApps30)
	storage.DB.Model(&models.Appointment{}).Where("status IN ?",
		[]models.AppointmentStatus{models.AppointmentBooked, models.AppointmentConfirmed}).Count(&upcoming)

	ctx.JSON(iris.Map{
		"data": iris.Map{
			"applications_by_status":    byStatus,
			"applications_by_visa_type": byVisaType,
			"total_applicants":          totalUsers,
			"documents_awaiting_review": pendingDocs,
			"new_applications_7d":       newApps7,
			"new_applications_30d":      newApps30,
			"upcoming_appointments":     upcoming,
		},
		"meta":  iris.Map{},
		"links": iris.Map{},
	})
}

// GET /api/admin/activity
func AdminActivity(ctx iris.Context) {
	var logs []models.AuditLog
	storage.DB.Order("created_at DESC").Limit(100).Find(&logs)
	ctx.JSON(iris.Map{"data": logs, "meta": iris.Map{}, "links": iris.Map{}})
}
