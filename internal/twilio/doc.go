// Package twilio wraps the Twilio Messages REST endpoint for outbound
// WhatsApp sends and validates X-Twilio-Signature headers on inbound
// webhook callbacks.
//
// The client speaks Twilio's form-encoded API directly over net/http with
// basic auth. Provider rejections (invalid number, auth failure, rate
// limit) surface as *APIError carrying Twilio's status, error code and
// message; nothing is retried here — delivery and retry semantics belong
// to the provider.
package twilio
