package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/nikhilb/event_booking/configs"
)

// Stripe-style payment gateway client. The provider is optional: when
// STRIPE_SECRET_KEY is unset the payment flow falls back to mock payments
// and mock refunds, never touching the network.

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

var ErrInvalidSignature = errors.New("invalid webhook signature")

const signatureTolerance = 5 * time.Minute

func StripeConfigured() bool {
	return config.Config("STRIPE_SECRET_KEY") != ""
}

func apiBase() string {
	return config.ConfigOr("STRIPE_API_BASE_URL", "https://api.stripe.com")
}

func AmountToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func postForm(path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequest("POST", fmt.Sprintf("%s%s", apiBase(), path), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", config.Config("STRIPE_SECRET_KEY")))

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stripe %s failed (%d): %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

// CreatePaymentIntent stages a payment for the given amount in minor
// currency units. The booking id travels in the intent metadata so the
// webhook can find its way back.
func CreatePaymentIntent(amountMinorUnits int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinorUnits, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	body, err := postForm("/v1/payment_intents", form)
	if err != nil {
		return nil, err
	}

	var intent PaymentIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func CreateRefund(providerPaymentID string, metadata map[string]string) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", providerPaymentID)
	form.Set("reason", "requested_by_customer")
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	body, err := postForm("/v1/refunds", form)
	if err != nil {
		return nil, err
	}

	var refund Refund
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// WebhookObject is the provider object embedded in a webhook event: a
// payment intent for payment events, a charge/refund for refund events.
type WebhookObject struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	PaymentIntent    string            `json:"payment_intent"`
	FailureReason    string            `json:"failure_reason"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object WebhookObject `json:"object"`
	} `json:"data"`
}

func computeSignature(timestamp string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks the "t=<unix>,v1=<hex>" signature header:
// v1 must equal HMAC-SHA256(secret, t + "." + payload) and t must be within
// tolerance, so a captured delivery cannot be replayed later.
func VerifyWebhookSignature(payload []byte, header, secret string) error {
	if secret == "" || header == "" {
		return ErrInvalidSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := time.Since(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrInvalidSignature
	}

	expected := computeSignature(timestamp, payload, secret)
	for _, signature := range signatures {
		if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1 {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ParseWebhookEvent verifies the signature against STRIPE_WEBHOOK_SECRET and
// decodes the event. Signature failures surface as ErrInvalidSignature so the
// handler can tell the provider to retry.
func ParseWebhookEvent(payload []byte, header string) (*WebhookEvent, error) {
	if err := VerifyWebhookSignature(payload, header, config.Config("STRIPE_WEBHOOK_SECRET")); err != nil {
		return nil, err
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("cannot decode webhook payload: %w", err)
	}
	return &event, nil
}
