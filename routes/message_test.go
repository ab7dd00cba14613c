package routes

import (
	"testing"

	"github.com/borderlesste/cavb-visa-sub000/models"
)

func TestCanonicalPair(t *testing.T) {
	cases := [][2]uint{{1, 2}, {2, 1}, {7, 7}, {100, 3}}
	for _, pair := range cases {
		a1, b1 := models.CanonicalPair(pair[0], pair[1])
		a2, b2 := models.CanonicalPair(pair[1], pair[0])
		if a1 != a2 || b1 != b2 {
			t.Fatalf("CanonicalPair(%d,%d) != CanonicalPair(%d,%d)", pair[0], pair[1], pair[1], pair[0])
		}
		if a1 > b1 {
			t.Fatalf("CanonicalPair(%d,%d) not ordered: (%d,%d)", pair[0], pair[1], a1, b1)
		}
	}
}

func TestConversationResolution(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	// Either sender order resolves to the same thread.
	m1, conv1, err := sendMessage(db, alice.ID, bob.ID, "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, conv2, err := sendMessage(db, bob.ID, alice.ID, "hi back", nil)
	if err != nil {
		t.Fatal(err)
	}
	if conv1.ID != conv2.ID {
		t.Fatalf("sender order produced different conversations: %d vs %d", conv1.ID, conv2.ID)
	}
	if m1.SenderID != alice.ID || m1.ReceiverID != bob.ID {
		t.Fatalf("message endpoints mangled: %+v", m1)
	}

	var total int64
	db.Model(&models.Message{}).Where("conversation_id = ?", conv1.ID).Count(&total)
	if total != 2 {
		t.Fatalf("expected 2 messages in one thread, got %d", total)
	}
}

func TestConversationApplicationScope(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice2@example.com")
	bob := createTestUser(t, db, "bob2@example.com")

	app, err := createApplication(db, alice.ID, models.VisaTypeVitemIII)
	if err != nil {
		t.Fatal(err)
	}

	_, general, err := sendMessage(db, alice.ID, bob.ID, "general question", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, scoped, err := sendMessage(db, alice.ID, bob.ID, "about my application", &app.ID)
	if err != nil {
		t.Fatal(err)
	}
	if general.ID == scoped.ID {
		t.Fatal("application-scoped thread collapsed into the general one")
	}

	// Same scope from the other direction reuses the scoped thread.
	_, scopedAgain, err := sendMessage(db, bob.ID, alice.ID, "reply", &app.ID)
	if err != nil {
		t.Fatal(err)
	}
	if scopedAgain.ID != scoped.ID {
		t.Fatalf("scoped thread not reused: %d vs %d", scopedAgain.ID, scoped.ID)
	}

	var convCount int64
	db.Model(&models.Conversation{}).Count(&convCount)
	if convCount != 2 {
		t.Fatalf("expected exactly 2 conversations, got %d", convCount)
	}
}

func TestDuplicateConversationRejectedByIndex(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice4@example.com")
	bob := createTestUser(t, db, "bob4@example.com")

	app, err := createApplication(db, alice.ID, models.VisaTypeVitemIII)
	if err != nil {
		t.Fatal(err)
	}
	one, two := models.CanonicalPair(alice.ID, bob.ID)

	// Direct duplicate inserts must hit the unique pair index, both for the
	// general thread and within an application scope.
	general := models.Conversation{ParticipantOneID: one, ParticipantTwoID: two}
	if err := db.Create(&general).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Conversation{ParticipantOneID: one, ParticipantTwoID: two}).Error; err == nil {
		t.Fatal("duplicate general thread accepted")
	}

	scoped := models.Conversation{ParticipantOneID: one, ParticipantTwoID: two, ApplicationID: &app.ID}
	if err := db.Create(&scoped).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Conversation{ParticipantOneID: one, ParticipantTwoID: two, ApplicationID: &app.ID}).Error; err == nil {
		t.Fatal("duplicate scoped thread accepted")
	}

	// A lost insert race resolves to the surviving row instead of erroring.
	conv, err := findOrCreateConversation(db, alice.ID, bob.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID != general.ID {
		t.Fatalf("expected existing thread %d, got %d", general.ID, conv.ID)
	}

	var convCount int64
	db.Model(&models.Conversation{}).Count(&convCount)
	if convCount != 2 {
		t.Fatalf("expected exactly 2 conversations, got %d", convCount)
	}
}

func TestSendMessageBumpsConversation(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice3@example.com")
	bob := createTestUser(t, db, "bob3@example.com")

	msg, conv, err := sendMessage(db, alice.ID, bob.ID, "first", nil)
	if err != nil {
		t.Fatal(err)
	}

	var reloaded models.Conversation
	db.First(&reloaded, conv.ID)
	if reloaded.UpdatedAt.Before(msg.CreatedAt) {
		t.Fatalf("conversation not bumped: updated %v, message %v", reloaded.UpdatedAt, msg.CreatedAt)
	}

	if msg.Read {
		t.Fatal("new message must start unread")
	}
}
