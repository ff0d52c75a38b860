// internal/services/webhook_service_test.go
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/hugoapp/hugo-backend/internal/cache"
)

const testWebhookSecret = "whsec_test_secret"

// signStripePayload builds a Stripe-Signature header the way stripe-go
// verifies it: v1 = HMAC-SHA256(secret, "<timestamp>.<payload>").
func signStripePayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func testEventPayload(eventID, eventType string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"api_version":%q,"data":{"object":{}}}`,
		eventID, eventType, stripe.APIVersion))
}

func TestProcess_InvalidSignatureFailsClosed(t *testing.T) {
	svc := NewWebhookService(testWebhookSecret, nil, nil, nil)

	called := false
	svc.Register("payment_intent.succeeded", func(event stripe.Event) error {
		called = true
		return nil
	})

	payload := testEventPayload("evt_1", "payment_intent.succeeded")

	err := svc.Process(context.Background(), payload, "t=0,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.False(t, called, "unverified events must never be applied")

	err = svc.Process(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.False(t, called)
}

func TestProcess_AppliesVerifiedEvent(t *testing.T) {
	svc := NewWebhookService(testWebhookSecret, nil, nil, nil)

	var seen string
	svc.Register("payment_intent.succeeded", func(event stripe.Event) error {
		seen = event.ID
		return nil
	})

	payload := testEventPayload("evt_apply_1", "payment_intent.succeeded")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	err := svc.Process(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_apply_1", seen)
}

func TestProcess_UnhandledTypeAcknowledged(t *testing.T) {
	svc := NewWebhookService(testWebhookSecret, nil, nil, nil)

	payload := testEventPayload("evt_2", "invoice.finalized")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	err := svc.Process(context.Background(), payload, header)
	assert.NoError(t, err, "unhandled event types are acknowledged, not errored")
}

func TestProcess_HandlerFailureStillAcknowledged(t *testing.T) {
	svc := NewWebhookService(testWebhookSecret, nil, nil, nil)

	svc.Register("payment_intent.succeeded", func(event stripe.Event) error {
		return fmt.Errorf("ledger unavailable")
	})

	payload := testEventPayload("evt_3", "payment_intent.succeeded")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	err := svc.Process(context.Background(), payload, header)
	assert.NoError(t, err, "handler failures are logged and acknowledged so the provider stops retrying")
}

func TestProcess_DuplicateDeliveryIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deduper := cache.NewEventDeduper(client, time.Hour)

	svc := NewWebhookService(testWebhookSecret, deduper, nil, nil)

	applied := 0
	svc.Register("payment_intent.succeeded", func(event stripe.Event) error {
		applied++
		return nil
	})

	payload := testEventPayload("evt_dup_1", "payment_intent.succeeded")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	require.NoError(t, svc.Process(context.Background(), payload, header))
	require.NoError(t, svc.Process(context.Background(), payload, header))
	assert.Equal(t, 1, applied, "the second delivery of the same event id must not re-apply")
}

func TestProcess_DedupOutageAppliesAnyway(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deduper := cache.NewEventDeduper(client, time.Hour)
	mr.Close() // simulate redis going away

	svc := NewWebhookService(testWebhookSecret, deduper, nil, nil)

	applied := 0
	svc.Register("payment_intent.succeeded", func(event stripe.Event) error {
		applied++
		return nil
	})

	payload := testEventPayload("evt_outage_1", "payment_intent.succeeded")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	err := svc.Process(context.Background(), payload, header)
	assert.NoError(t, err)
	assert.Equal(t, 1, applied, "dedup store trouble must not drop events; applies stay idempotent downstream")
}

func TestEventDeduper_NilClientAlwaysFirst(t *testing.T) {
	var deduper *cache.EventDeduper

	first, err := deduper.FirstDelivery(context.Background(), "evt_x")
	require.NoError(t, err)
	assert.True(t, first)
}
