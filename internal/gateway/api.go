// ABOUTME: HTTP API handlers for conversations, message history, sends and webhooks
// ABOUTME: Maps store/provider errors to JSON error responses

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/machu87/whatsapp-support-backend/internal/conversation"
	"github.com/machu87/whatsapp-support-backend/internal/store"
	"github.com/machu87/whatsapp-support-backend/internal/twilio"
)

// ConversationResponse is the JSON shape for a conversation.
type ConversationResponse struct {
	ID          string `json:"id"`
	Participant string `json:"participant"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// MessageResponse is the JSON shape for a message.
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Direction      string `json:"direction"`
	From           string `json:"from"`
	To             string `json:"to"`
	Body           string `json:"body,omitempty"`
	MediaURL       string `json:"mediaUrl,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

// SendMessageRequest is the JSON request body for POST /messages/send.
type SendMessageRequest struct {
	To       string `json:"to"`
	Body     string `json:"body,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

// SendMessageResponse is the JSON response for POST /messages/send.
type SendMessageResponse struct {
	OK      bool            `json:"ok"`
	SID     string          `json:"sid"`
	Message MessageResponse `json:"message"`
}

func conversationResponse(conv *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:          conv.ID,
		Participant: conv.Participant,
		Status:      conv.Status,
		CreatedAt:   conv.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   conv.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func messageResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Direction:      msg.Direction,
		From:           msg.From,
		To:             msg.To,
		Body:           msg.Body,
		MediaURL:       msg.MediaURL,
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// handleListConversations handles GET /conversations requests.
// Returns all conversations, most recently updated first.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conversations, err := g.conversation.List(r.Context())
	if err != nil {
		g.logger.Error("failed to list conversations", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		response = append(response, conversationResponse(conv))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConversationMessages handles GET /conversations/{id}/messages requests.
// Returns the full message history in creation order. There is no existence
// check on the conversation ID: an unknown ID yields an empty array.
func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Extract conversation ID from path: /conversations/{id}/messages
	path := r.URL.Path
	prefix := "/conversations/"
	suffix := "/messages"

	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}

	conversationID := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if conversationID == "" || strings.Contains(conversationID, "/") {
		g.sendJSONError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	messages, err := g.conversation.History(r.Context(), conversationID)
	if err != nil {
		g.logger.Error("failed to list messages", "error", err, "conversation_id", conversationID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, messageResponse(msg))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleSendMessage handles POST /messages/send requests.
//
// Sequence:
//  1. Parse and validate the JSON body (recipient is required)
//  2. Dispatch via the provider client; a provider rejection aborts the
//     request and nothing is persisted
//  3. Ensure a conversation exists for the recipient
//  4. Record the outbound message from the configured sender address
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseSendRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	from := g.config.Twilio.From

	receipt, err := g.sender.SendMessage(r.Context(), from, req.To, req.Body, req.MediaURL)
	if err != nil {
		var apiErr *twilio.APIError
		if errors.As(err, &apiErr) {
			g.logger.Warn("provider rejected send", "error", err, "to", req.To)
			g.sendJSONError(w, providerErrorStatus(apiErr), apiErr.Message)
			return
		}
		g.logger.Error("provider send failed", "error", err, "to", req.To)
		g.sendJSONError(w, http.StatusBadGateway, "provider send failed")
		return
	}

	conv, err := g.conversation.Ensure(r.Context(), req.To)
	if err != nil {
		g.logger.Error("failed to ensure conversation", "error", err, "participant", req.To)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	msg, err := g.conversation.Record(r.Context(), recordOutbound(conv.ID, from, req))
	if err != nil {
		g.logger.Error("failed to record message", "error", err, "conversation_id", conv.ID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := SendMessageResponse{
		OK:      true,
		SID:     receipt.SID,
		Message: messageResponse(msg),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleWebhook handles POST /webhooks/whatsapp callbacks from Twilio.
// The payload is form-encoded with From, To, Body and MediaUrl0 fields;
// only the first media item is captured, additional items are dropped.
// Redelivered callbacks are dropped by MessageSid within the dedupe window.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	if g.config.Twilio.ValidateSignatures {
		signedURL := strings.TrimRight(g.config.Twilio.PublicURL, "/") + r.URL.RequestURI()
		signature := r.Header.Get("X-Twilio-Signature")
		if !twilio.ValidateSignature(g.config.Twilio.AuthToken, signedURL, r.PostForm, signature) {
			g.logger.Warn("webhook signature mismatch", "url", signedURL)
			g.sendJSONError(w, http.StatusForbidden, "signature mismatch")
			return
		}
	}

	from := r.PostFormValue("From")
	to := r.PostFormValue("To")
	body := r.PostFormValue("Body")
	mediaURL := r.PostFormValue("MediaUrl0")

	if from == "" {
		g.sendJSONError(w, http.StatusBadRequest, "From is required")
		return
	}

	// Twilio retries callbacks that don't get a timely 2xx; a replayed
	// delivery acks without recording a second message. The SID is marked
	// only after the record succeeds, so a failed delivery stays
	// retryable.
	sid := r.PostFormValue("MessageSid")
	if sid != "" && g.dedupe.Check(sid) {
		g.logger.Debug("duplicate webhook delivery dropped", "message_sid", sid)
		g.writeOK(w)
		return
	}

	conv, err := g.conversation.Ensure(r.Context(), from)
	if err != nil {
		g.logger.Error("failed to ensure conversation", "error", err, "participant", from)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	_, err = g.conversation.Record(r.Context(), recordInbound(conv.ID, from, to, body, mediaURL))
	if err != nil {
		g.logger.Error("failed to record message", "error", err, "conversation_id", conv.ID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if sid != "" {
		g.dedupe.Mark(sid)
	}

	g.writeOK(w)
}

// writeOK writes the webhook acknowledgement body.
func (g *Gateway) writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseSendRequest parses and validates a SendMessageRequest from the given reader.
// Returns an error if the JSON is invalid or the recipient is missing.
func parseSendRequest(r io.Reader) (*SendMessageRequest, error) {
	var req SendMessageRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if req.To == "" {
		return nil, errors.New("to is required")
	}
	if req.Body == "" && req.MediaURL == "" {
		return nil, errors.New("body or mediaUrl is required")
	}

	return &req, nil
}

// providerErrorStatus maps a provider rejection to an HTTP status.
// Caller-fault rejections (bad number, etc.) pass the provider's 4xx
// through; everything else is a bad gateway.
func providerErrorStatus(apiErr *twilio.APIError) int {
	if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}

func recordOutbound(conversationID, from string, req *SendMessageRequest) conversation.RecordRequest {
	return conversation.RecordRequest{
		ConversationID: conversationID,
		Direction:      store.DirectionOutbound,
		From:           from,
		To:             req.To,
		Body:           req.Body,
		MediaURL:       req.MediaURL,
	}
}

func recordInbound(conversationID, from, to, body, mediaURL string) conversation.RecordRequest {
	return conversation.RecordRequest{
		ConversationID: conversationID,
		Direction:      store.DirectionInbound,
		From:           from,
		To:             to,
		Body:           body,
		MediaURL:       mediaURL,
	}
}
