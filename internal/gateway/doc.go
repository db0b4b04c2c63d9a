// Package gateway wires the support backend together: the SQLite store,
// the conversation service, the Twilio client and the webhook dedupe
// cache behind a single HTTP server.
//
// The HTTP surface is small. Operators and frontends read conversations
// and history over GET endpoints and dispatch replies over
// POST /messages/send; Twilio delivers inbound WhatsApp traffic to
// POST /webhooks/whatsapp as form-encoded callbacks.
package gateway
