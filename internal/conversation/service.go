// ABOUTME: Conversation service for the find-or-create and message-append flows
// ABOUTME: All inbound and outbound messages are recorded through this layer

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/machu87/whatsapp-support-backend/internal/store"
)

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversationByParticipant(ctx context.Context, participant string) (*store.Conversation, error)
	ListConversations(ctx context.Context) ([]*store.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	SaveMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// Service manages conversations and their message history.
type Service struct {
	store  ConversationStore
	logger *slog.Logger
}

// New creates a new conversation Service
func New(store ConversationStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "conversation"),
	}
}

// Ensure returns the conversation for a participant, creating one with
// status "open" if none exists. Concurrent first contacts for the same
// participant are safe: the UNIQUE constraint on participant rejects the
// losing insert, and the loser re-reads the winner's row.
func (s *Service) Ensure(ctx context.Context, participant string) (*store.Conversation, error) {
	if participant == "" {
		return nil, fmt.Errorf("participant is required")
	}

	conv, err := s.store.GetConversationByParticipant(ctx, participant)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	now := time.Now()
	conv = &store.Conversation{
		ID:          uuid.New().String(),
		Participant: participant,
		Status:      store.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		// Another request may have created the conversation between our
		// lookup and insert attempt
		if errors.Is(err, store.ErrDuplicateConversation) {
			existing, lookupErr := s.store.GetConversationByParticipant(ctx, participant)
			if lookupErr == nil {
				s.logger.Debug("found existing conversation after race", "conversation_id", existing.ID)
				return existing, nil
			}
			s.logger.Error("retry lookup failed after duplicate error", "lookup_error", lookupErr)
		}
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("conversation created", "conversation_id", conv.ID, "participant", participant)
	return conv, nil
}

// RecordRequest contains everything needed to append a message to a conversation
type RecordRequest struct {
	ConversationID string
	Direction      string // store.DirectionInbound or store.DirectionOutbound
	From           string
	To             string
	Body           string
	MediaURL       string
}

// Record appends a message to a conversation. Messages are insert-only;
// the owning conversation's updated_at is bumped as a side effect.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*store.Message, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	if req.Direction != store.DirectionInbound && req.Direction != store.DirectionOutbound {
		return nil, fmt.Errorf("invalid direction %q", req.Direction)
	}

	now := time.Now()
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		Direction:      req.Direction,
		From:           req.From,
		To:             req.To,
		Body:           req.Body,
		MediaURL:       req.MediaURL,
		CreatedAt:      now,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	// Best effort: a failed touch leaves the message recorded and the
	// conversation slightly stale in list ordering
	if err := s.store.TouchConversation(ctx, req.ConversationID, now); err != nil {
		s.logger.Warn("failed to touch conversation",
			"error", err,
			"conversation_id", req.ConversationID)
	}

	s.logger.Debug("message recorded",
		"message_id", msg.ID,
		"conversation_id", req.ConversationID,
		"direction", req.Direction)

	return msg, nil
}

// List returns all conversations, most recently updated first
func (s *Service) List(ctx context.Context) ([]*store.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// History returns all messages for a conversation in creation order.
// An unknown conversation ID yields an empty history, not an error.
func (s *Service) History(ctx context.Context, conversationID string) ([]*store.Message, error) {
	return s.store.ListMessages(ctx, conversationID)
}
