package models

import "gorm.io/gorm"

// Conversation links two users, optionally scoped to one application.
// The participant pair is stored in canonical order (lower ID first) so a
// pair maps to exactly one row per application scope. Two partial unique
// indexes enforce that at the database level: NULL application IDs compare
// distinct, so the general thread needs its own index.
type Conversation struct {
	gorm.Model
	ParticipantOneID uint  `json:"participantOneID" gorm:"not null;uniqueIndex:idx_conversation_pair_app,where:application_id IS NOT NULL;uniqueIndex:idx_conversation_pair_general,where:application_id IS NULL"`
	ParticipantTwoID uint  `json:"participantTwoID" gorm:"not null;uniqueIndex:idx_conversation_pair_app;uniqueIndex:idx_conversation_pair_general"`
	ApplicationID    *uint `json:"applicationID" gorm:"uniqueIndex:idx_conversation_pair_app;index"`

	ParticipantOne User `json:"-" gorm:"foreignKey:ParticipantOneID"`
	ParticipantTwo User `json:"-" gorm:"foreignKey:ParticipantTwoID"`
}

// CanonicalPair orders two user IDs so (a, b) and (b, a) address the same
// conversation.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}
