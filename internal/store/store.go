// ABOUTME: Store interface and data types for whatsapp-support-backend persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when trying to create a conversation
// for a participant that already has one
var ErrDuplicateConversation = errors.New("conversation already exists")

// Conversation status constants
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Message direction constants
const (
	DirectionInbound  = "inbound"  // Received from the participant
	DirectionOutbound = "outbound" // Sent by the system
)

// Conversation represents a support conversation with a single participant.
// There is at most one conversation per participant, enforced by a UNIQUE
// constraint on the participant column.
type Conversation struct {
	ID          string
	Participant string
	Status      string // "open" or "closed"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message represents a single message within a conversation.
// Body and MediaURL are optional; an empty string is stored as NULL.
type Message struct {
	ID             string
	ConversationID string
	Direction      string // "inbound" or "outbound"
	From           string
	To             string
	Body           string
	MediaURL       string
	CreatedAt      time.Time
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByParticipant(ctx context.Context, participant string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]*Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
