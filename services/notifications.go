package services

import (
	"log"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/ws"
)

// Outcome is the result of a best-effort side effect. Skipped outcomes are
// logged and never fail the operation that triggered them.
type Outcome struct {
	Delivered bool
	Reason    string
}

func Delivered() Outcome            { return Outcome{Delivered: true} }
func Skipped(reason string) Outcome { return Outcome{Reason: reason} }

// NotificationService persists notifications and pushes them to connected
// clients through the injected hub.
type NotificationService struct {
	Hub *ws.Hub
}

func NewNotificationService(hub *ws.Hub) *NotificationService {
	return &NotificationService{Hub: hub}
}

// Notify stores a notification row and attempts a realtime push. The push
// outcome is informational only.
func (ns *NotificationService) Notify(userID uint, title, message, notificationType string, applicationID *uint) (*models.Notification, Outcome) {
	notification := models.Notification{
		UserID:        userID,
		Title:         title,
		Message:       message,
		Type:          notificationType,
		ApplicationID: applicationID,
	}
	if err := storage.DB.Create(&notification).Error; err != nil {
		log.Printf("failed to persist notification for user %d: %v", userID, err)
		return nil, Skipped("persist failed")
	}

	outcome := ns.push(userID, ws.Event{Type: ws.EventNewNotification, Payload: notification})
	return &notification, outcome
}

// PushMessage delivers a NEW_MESSAGE event to the recipient, if connected.
func (ns *NotificationService) PushMessage(recipientID uint, message *models.Message) Outcome {
	return ns.push(recipientID, ws.Event{Type: ws.EventNewMessage, Payload: message})
}

// PushNotificationUpdated signals a read-state change on one notification.
func (ns *NotificationService) PushNotificationUpdated(userID uint, notification *models.Notification) Outcome {
	return ns.push(userID, ws.Event{Type: ws.EventNotificationUpdated, Payload: notification})
}

// PushAllNotificationsRead signals that every notification of the user was
// marked read, without enumerating them.
func (ns *NotificationService) PushAllNotificationsRead(userID uint) Outcome {
	return ns.push(userID, ws.Event{Type: ws.EventNotificationUpdated, Payload: map[string]bool{"all": true}})
}

// PushNotificationDeleted signals removal of one notification.
func (ns *NotificationService) PushNotificationDeleted(userID uint, notificationID uint) Outcome {
	return ns.push(userID, ws.Event{Type: ws.EventNotificationDeleted, Payload: map[string]uint{"id": notificationID}})
}

func (ns *NotificationService) push(userID uint, ev ws.Event) Outcome {
	if ns.Hub == nil {
		return Skipped("no hub configured")
	}
	if !ns.Hub.Send(userID, ev) {
		log.Printf("push %s to user %d skipped: not connected", ev.Type, userID)
		return Skipped("recipient not connected")
	}
	return Delivered()
}
