// ABOUTME: Tests for the Twilio client and webhook signature validation
// ABOUTME: Uses httptest to verify request encoding and error decoding

package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendMessage(t *testing.T) {
	var gotForm url.Values
	var gotPath string
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	client, err := NewClient("AC555", "token-abc", WithBaseURL(srv.URL))
	require.NoError(t, err)

	receipt, err := client.SendMessage(context.Background(),
		"whatsapp:+14155238886", "whatsapp:+15551112222", "Hi there", "")
	require.NoError(t, err)

	assert.Equal(t, "SM123", receipt.SID)
	assert.Equal(t, "queued", receipt.Status)

	assert.Equal(t, "/2010-04-01/Accounts/AC555/Messages.json", gotPath)
	assert.Equal(t, "AC555", gotUser)
	assert.Equal(t, "token-abc", gotPass)
	assert.Equal(t, "whatsapp:+14155238886", gotForm.Get("From"))
	assert.Equal(t, "whatsapp:+15551112222", gotForm.Get("To"))
	assert.Equal(t, "Hi there", gotForm.Get("Body"))
	assert.NotContains(t, gotForm, "MediaUrl")
}

func TestClient_SendMessage_MediaOnly(t *testing.T) {
	var gotForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`{"sid":"SM456","status":"queued"}`))
	}))
	defer srv.Close()

	client, err := NewClient("AC555", "token-abc", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(),
		"whatsapp:+14155238886", "whatsapp:+15551112222", "", "https://example.com/pic.jpg")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/pic.jpg", gotForm.Get("MediaUrl"))
	assert.NotContains(t, gotForm, "Body")
}

func TestClient_SendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	}))
	defer srv.Close()

	client, err := NewClient("AC555", "token-abc", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(),
		"whatsapp:+14155238886", "whatsapp:bogus", "Hi", "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 21211, apiErr.Code)
	assert.Contains(t, apiErr.Message, "not a valid phone number")
}

func TestClient_SendMessage_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	client, err := NewClient("AC555", "token-abc", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(),
		"whatsapp:+14155238886", "whatsapp:+15551112222", "Hi", "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestClient_SendMessage_EmptyRecipient(t *testing.T) {
	client, err := NewClient("AC555", "token-abc")
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(), "whatsapp:+14155238886", "", "Hi", "")
	assert.Error(t, err)
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient("", "token")
	assert.Error(t, err)

	_, err = NewClient("AC555", "")
	assert.Error(t, err)
}

// signFor computes a valid X-Twilio-Signature for the given URL and form,
// mirroring what Twilio does on its side.
func signFor(authToken, requestURL string, form url.Values) string {
	payload := requestURL
	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	// Small fixed set in these tests; sort manually to stay independent
	// of the implementation under test.
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, name := range names {
		payload += name + form.Get(name)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	authToken := "12345"
	requestURL := "https://mycompany.example/webhooks/whatsapp"
	form := url.Values{}
	form.Set("From", "whatsapp:+15551112222")
	form.Set("To", "whatsapp:+15550009999")
	form.Set("Body", "Hello")

	sig := signFor(authToken, requestURL, form)

	assert.True(t, ValidateSignature(authToken, requestURL, form, sig))

	// Wrong token
	assert.False(t, ValidateSignature("99999", requestURL, form, sig))

	// Tampered parameter
	tampered := url.Values{}
	for k, v := range form {
		tampered[k] = v
	}
	tampered.Set("Body", "Goodbye")
	assert.False(t, ValidateSignature(authToken, requestURL, tampered, sig))

	// Different URL
	assert.False(t, ValidateSignature(authToken, "https://other.example/hook", form, sig))

	// Missing signature
	assert.False(t, ValidateSignature(authToken, requestURL, form, ""))
}
