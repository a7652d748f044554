package internal

import (
	"time"
)

// CreateTestConversation creates a two-message conversation with one cited source
func CreateTestConversation(id, sessionID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		SessionID: sessionID,
		Messages: []Message{
			{
				Role:      RoleUser,
				Text:      "What is in the handbook?",
				Timestamp: now,
			},
			{
				Role:      RoleAssistant,
				Text:      "The handbook covers **onboarding** and `expenses`.",
				Sources:   []Source{{Name: "guide.pdf"}},
				Timestamp: now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestConversationWithMessages creates a conversation with custom messages
func CreateTestConversationWithMessages(id string, messages []Message) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
