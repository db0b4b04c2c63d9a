// ABOUTME: X-Twilio-Signature validation for inbound webhook callbacks
// ABOUTME: Implements Twilio's HMAC-SHA1 request signing scheme

package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"sort"
)

// ValidateSignature checks an X-Twilio-Signature header against the request.
// Per Twilio's scheme, the signed payload is the full webhook URL followed by
// every POST parameter name and value concatenated in lexicographic order of
// the names, HMAC-SHA1'd with the account's auth token and base64-encoded.
func ValidateSignature(authToken, requestURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	sort.Strings(names)

	payload := requestURL
	for _, name := range names {
		for _, value := range form[name] {
			payload += name + value
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
