package routes

import (
	"strconv"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/services"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// GetNotifications lists the caller's notifications, newest first.
func GetNotifications(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []models.Notification
	err := storage.DB.Where("user_id = ?", claims.ID).
		Order("created_at DESC").Limit(limit).
		Find(&notifications).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var unread int64
	storage.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", claims.ID, false).
		Count(&unread)

	ctx.JSON(iris.Map{"data": notifications, "unreadCount": unread})
}

// MarkNotificationRead flips one notification and pushes the update.
func MarkNotificationRead(notifier *services.NotificationService) iris.Handler {
	return func(ctx iris.Context) {
		claims := jwt.Get(ctx).(*utils.AccessToken)
		id, err := strconv.Atoi(ctx.Params().Get("id"))
		if err != nil || id <= 0 {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid notification ID")
			return
		}

		var notification models.Notification
		if err := storage.DB.Where("id = ? AND user_id = ?", id, claims.ID).First(&notification).Error; err != nil {
			utils.CreateNotFound(ctx)
			return
		}

		if !notification.Read {
			if err := storage.DB.Model(&notification).Update("read", true).Error; err != nil {
				utils.CreateInternalServerError(ctx)
				return
			}
			notification.Read = true
			notifier.PushNotificationUpdated(claims.ID, &notification)
		}

		ctx.JSON(notification)
	}
}

// MarkAllNotificationsRead flips everything unread for the caller.
func MarkAllNotificationsRead(notifier *services.NotificationService) iris.Handler {
	return func(ctx iris.Context) {
		claims := jwt.Get(ctx).(*utils.AccessToken)

		err := storage.DB.Model(&models.Notification{}).
			Where("user_id = ? AND read = ?", claims.ID, false).
			Update("read", true).Error
		if err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}

		notifier.PushAllNotificationsRead(claims.ID)

		ctx.JSON(iris.Map{"success": true})
	}
}

// DeleteNotification removes one notification and pushes the deletion.
func DeleteNotification(notifier *services.NotificationService) iris.Handler {
	return func(ctx iris.Context) {
		claims := jwt.Get(ctx).(*utils.AccessToken)
		id, err := strconv.Atoi(ctx.Params().Get("id"))
		if err != nil || id <= 0 {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid notification ID")
			return
		}

		result := storage.DB.Where("id = ? AND user_id = ?", id, claims.ID).Delete(&models.Notification{})
		if result.Error != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		if result.RowsAffected == 0 {
			utils.CreateNotFound(ctx)
			return
		}

		notifier.PushNotificationDeleted(claims.ID, uint(id))

		ctx.JSON(iris.Map{"success": true})
	}
}
