package routes

import (
	"errors"
	"log"
	"sort"
	"strconv"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/services"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
)

// ConversationSummary is one entry in the conversation list. Placeholder
// entries (admin side, no thread yet) carry a zero ID.
type ConversationSummary struct {
	ID              uint   `json:"id"`
	OtherUserID     uint   `json:"otherUserID"`
	OtherUserName   string `json:"otherUserName"`
	ApplicationID   *uint  `json:"applicationID,omitempty"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime string `json:"lastMessageTime,omitempty"`
	UnreadCount     int64  `json:"unreadCount"`
}

// conversationScope matches the single thread for a canonical pair within
// one application scope. The match is null-aware: the general thread (no
// application) is distinct from per-application threads.
func conversationScope(db *gorm.DB, one, two uint, applicationID *uint) *gorm.DB {
	q := db.Where("participant_one_id = ? AND participant_two_id = ?", one, two)
	if applicationID == nil {
		return q.Where("application_id IS NULL")
	}
	return q.Where("application_id = ?", *applicationID)
}

// findOrCreateConversation resolves the conversation for a canonical user
// pair within one application scope, creating it on first contact. Two
// racing first messages both reach the insert; the unique pair index makes
// the loser fail, so it re-reads the winner's row.
func findOrCreateConversation(db *gorm.DB, userA, userB uint, applicationID *uint) (*models.Conversation, error) {
	one, two := models.CanonicalPair(userA, userB)

	var conv models.Conversation
	err := conversationScope(db, one, two, applicationID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{
		ParticipantOneID: one,
		ParticipantTwoID: two,
		ApplicationID:    applicationID,
	}
	if createErr := db.Create(&conv).Error; createErr != nil {
		var winner models.Conversation
		if err := conversationScope(db, one, two, applicationID).First(&winner).Error; err == nil {
			return &winner, nil
		}
		return nil, createErr
	}
	return &conv, nil
}

// sendMessage persists a message into the pair's conversation, bumps the
// conversation timestamp and returns both.
func sendMessage(db *gorm.DB, senderID, recipientID uint, content string, applicationID *uint) (*models.Message, *models.Conversation, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, nil, tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	conv, err := findOrCreateConversation(tx, senderID, recipientID, applicationID)
	if err != nil {
		return nil, nil, err
	}

	message := models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     recipientID,
		Content:        content,
	}
	if err := tx.Create(&message).Error; err != nil {
		return nil, nil, err
	}

	// Bump updated_at so the thread sorts to the top.
	if err := tx.Model(conv).Update("updated_at", message.CreatedAt).Error; err != nil {
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}
	return &message, conv, nil
}

// CreateMessage sends a message and attempts a realtime push to the
// recipient. A disconnected recipient simply finds it on next fetch.
func CreateMessage(notifier *services.NotificationService) iris.Handler {
	return func(ctx iris.Context) {
		var req CreateMessageInput
		if err := ctx.ReadJSON(&req); err != nil {
			utils.HandleValidationErrors(err, ctx)
			return
		}

		claims := jwt.Get(ctx).(*utils.AccessToken)

		if req.RecipientID == claims.ID {
			utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "cannot message yourself")
			return
		}

		var recipient models.User
		if err := storage.DB.First(&recipient, req.RecipientID).Error; err != nil {
			utils.CreateNotFound(ctx)
			return
		}

		// Applicants may only message staff.
		if claims.Role != "admin" && recipient.Role != "admin" {
			ctx.StatusCode(iris.StatusForbidden)
			return
		}

		message, conv, err := sendMessage(storage.DB, claims.ID, req.RecipientID, req.Content, req.ApplicationID)
		if err != nil {
			log.Printf("send message from %d to %d failed: %v", claims.ID, req.RecipientID, err)
			utils.CreateInternalServerError(ctx)
			return
		}

		notifier.PushMessage(req.RecipientID, message)

		ctx.StatusCode(iris.StatusCreated)
		ctx.JSON(iris.Map{"message": message, "conversationID": conv.ID})
	}
}

// GetConversations lists the caller's threads. Admins additionally get a
// placeholder entry for every applicant without an existing thread so staff
// can initiate contact with anyone.
func GetConversations(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var convs []models.Conversation
	err := storage.DB.
		Where("participant_one_id = ? OR participant_two_id = ?", claims.ID, claims.ID).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	seen := map[uint]bool{}
	for i := range convs {
		summary, sumErr := summarizeConversation(&convs[i], claims.ID)
		if sumErr != nil {
			continue
		}
		summaries = append(summaries, *summary)
		seen[summary.OtherUserID] = true
	}

	if claims.Role == "admin" {
		var applicants []models.User
		if err := storage.DB.Where("role <> ?", "admin").Find(&applicants).Error; err == nil {
			for i := range applicants {
				if seen[applicants[i].ID] {
					continue
				}
				summaries = append(summaries, ConversationSummary{
					OtherUserID:   applicants[i].ID,
					OtherUserName: applicants[i].FirstName + " " + applicants[i].LastName,
				})
			}
		}
	}

	// Threads with traffic first, then alphabetically by participant name.
	sort.SliceStable(summaries, func(i, j int) bool {
		if (summaries[i].LastMessage != "") != (summaries[j].LastMessage != "") {
			return summaries[i].LastMessage != ""
		}
		return summaries[i].OtherUserName < summaries[j].OtherUserName
	})

	ctx.JSON(iris.Map{"data": summaries})
}

func summarizeConversation(conv *models.Conversation, callerID uint) (*ConversationSummary, error) {
	otherID := conv.ParticipantOneID
	if otherID == callerID {
		otherID = conv.ParticipantTwoID
	}

	var other models.User
	if err := storage.DB.First(&other, otherID).Error; err != nil {
		return nil, err
	}

	summary := ConversationSummary{
		ID:            conv.ID,
		OtherUserID:   otherID,
		OtherUserName: other.FirstName + " " + other.LastName,
		ApplicationID: conv.ApplicationID,
	}

	var last models.Message
	err := storage.DB.Where("conversation_id = ?", conv.ID).Order("id DESC").First(&last).Error
	if err == nil {
		summary.LastMessage = last.Content
		summary.LastMessageTime = last.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	// No unread cache: counted per conversation per request.
	storage.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conv.ID, callerID, false).
		Count(&summary.UnreadCount)

	return &summary, nil
}

// GetConversation returns the messages of one thread, oldest first.
func GetConversation(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	convID, err := strconv.Atoi(ctx.Params().Get("id"))
	if err != nil || convID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid conversation ID")
		return
	}

	conv, convErr := conversationForCaller(uint(convID), claims.ID)
	if convErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cursor, _ := ctx.URLParamInt("cursor")

	q := storage.DB.Where("conversation_id = ?", conv.ID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var msgs []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	nextCursor := 0
	if len(msgs) > 0 {
		nextCursor = int(msgs[0].ID)
	}
	ctx.JSON(iris.Map{"messages": msgs, "nextCursor": nextCursor})
}

// MarkMessageRead flips the read flag on one message received by the caller.
func MarkMessageRead(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	msgID, err := strconv.Atoi(ctx.Params().Get("id"))
	if err != nil || msgID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid message ID")
		return
	}

	result := storage.DB.Model(&models.Message{}).
		Where("id = ? AND receiver_id = ?", msgID, claims.ID).
		Update("read", true)
	if result.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if result.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// MarkConversationRead flips every message the caller received in a thread.
func MarkConversationRead(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	convID, err := strconv.Atoi(ctx.Params().Get("id"))
	if err != nil || convID <= 0 {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "invalid conversation ID")
		return
	}

	if _, convErr := conversationForCaller(uint(convID), claims.ID); convErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	err = storage.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", convID, claims.ID, false).
		Update("read", true).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

func conversationForCaller(convID, callerID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := storage.DB.
		Where("id = ? AND (participant_one_id = ? OR participant_two_id = ?)", convID, callerID, callerID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

type CreateMessageInput struct {
	RecipientID   uint   `json:"recipientID" validate:"required"`
	Content       string `json:"content" validate:"required,max=5000"`
	ApplicationID *uint  `json:"applicationID"`
}
