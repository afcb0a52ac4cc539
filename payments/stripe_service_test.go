package payments

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeader(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, computeSignature(timestamp, payload, secret))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	secret := "whsec_test"

	tests := []struct {
		name    string
		header  string
		secret  string
		wantErr bool
	}{
		{name: "valid signature", header: signedHeader(payload, secret, time.Now()), secret: secret},
		{name: "wrong secret", header: signedHeader(payload, "whsec_other", time.Now()), secret: secret, wantErr: true},
		{name: "stale timestamp", header: signedHeader(payload, secret, time.Now().Add(-10*time.Minute)), secret: secret, wantErr: true},
		{name: "future timestamp", header: signedHeader(payload, secret, time.Now().Add(10*time.Minute)), secret: secret, wantErr: true},
		{name: "missing header", header: "", secret: secret, wantErr: true},
		{name: "missing secret", header: signedHeader(payload, secret, time.Now()), secret: "", wantErr: true},
		{name: "garbage header", header: "t=abc,v1=zzz", secret: secret, wantErr: true},
		{name: "no v1 part", header: "t=" + strconv.FormatInt(time.Now().Unix(), 10), secret: secret, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyWebhookSignature(payload, tt.header, tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	secret := "whsec_test"
	original := []byte(`{"amount":1000}`)
	header := signedHeader(original, secret, time.Now())

	tampered := []byte(`{"amount":1}`)
	assert.ErrorIs(t, VerifyWebhookSignature(tampered, header, secret), ErrInvalidSignature)
}

func TestParseWebhookEvent(t *testing.T) {
	secret := "whsec_test"
	t.Setenv("STRIPE_WEBHOOK_SECRET", secret)

	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_123",
			"status": "succeeded",
			"metadata": {"booking_id": "a2f6e8f2-6f0a-4bba-9c3b-0d9f9f43a111"}
		}}
	}`)

	event, err := ParseWebhookEvent(payload, signedHeader(payload, secret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
	assert.Equal(t, "pi_123", event.Data.Object.ID)
	assert.Equal(t, "a2f6e8f2-6f0a-4bba-9c3b-0d9f9f43a111", event.Data.Object.Metadata["booking_id"])

	_, err = ParseWebhookEvent(payload, "t=1,v1=bad")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestAmountToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(100000), AmountToMinorUnits(1000))
	assert.Equal(t, int64(49999), AmountToMinorUnits(499.99))
	assert.Equal(t, int64(10), AmountToMinorUnits(0.1))
	assert.Equal(t, int64(0), AmountToMinorUnits(0))
}

func TestCreatePaymentIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "150000", r.FormValue("amount"))
		assert.Equal(t, "inr", r.FormValue("currency"))
		assert.Equal(t, "true", r.FormValue("automatic_payment_methods[enabled]"))
		assert.Equal(t, "bk-1", r.FormValue("metadata[booking_id]"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_test_1","client_secret":"pi_test_1_secret","status":"requires_payment_method"}`)
	}))
	defer server.Close()

	t.Setenv("STRIPE_SECRET_KEY", "sk_test_key")
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	intent, err := CreatePaymentIntent(150000, "INR", map[string]string{"booking_id": "bk-1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_test_1", intent.ID)
	assert.Equal(t, "pi_test_1_secret", intent.ClientSecret)
	assert.Equal(t, "requires_payment_method", intent.Status)
}

func TestCreatePaymentIntentProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"message":"Your card was declined."}}`)
	}))
	defer server.Close()

	t.Setenv("STRIPE_SECRET_KEY", "sk_test_key")
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	_, err := CreatePaymentIntent(100, "INR", nil)
	assert.Error(t, err)
}

func TestCreateRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		assert.Equal(t, "pi_test_1", r.FormValue("payment_intent"))
		assert.Equal(t, "requested_by_customer", r.FormValue("reason"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"re_test_1","status":"pending"}`)
	}))
	defer server.Close()

	t.Setenv("STRIPE_SECRET_KEY", "sk_test_key")
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	refund, err := CreateRefund("pi_test_1", map[string]string{"booking_id": "bk-1"})
	require.NoError(t, err)
	assert.Equal(t, "re_test_1", refund.ID)
	assert.Equal(t, "pending", refund.Status)
}
