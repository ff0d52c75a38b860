// internal/services/webhook_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/hugoapp/hugo-backend/internal/cache"
	"github.com/hugoapp/hugo-backend/internal/metrics"
	"github.com/hugoapp/hugo-backend/internal/models"
)

// EventHandler applies one verified provider event to local state. Handlers
// must be idempotent: the provider makes no at-most-once delivery guarantee.
type EventHandler func(event stripe.Event) error

// WebhookService verifies, deduplicates and applies payment-provider events.
// It is stateless per call; all state lives in the ledger, escrow and
// subscription records. Dispatch goes through a registry keyed by event type
// so each handler is unit-testable in isolation.
type WebhookService struct {
	secret        string
	deduper       *cache.EventDeduper
	ledger        *LedgerService
	subscriptions *SubscriptionService
	handlers      map[string]EventHandler
}

func NewWebhookService(secret string, deduper *cache.EventDeduper, ledger *LedgerService, subscriptions *SubscriptionService) *WebhookService {
	s := &WebhookService{
		secret:        secret,
		deduper:       deduper,
		ledger:        ledger,
		subscriptions: subscriptions,
	}

	s.handlers = map[string]EventHandler{
		"checkout.session.completed":    s.handleCheckoutCompleted,
		"payment_intent.succeeded":      s.handlePaymentSucceeded,
		"payment_intent.payment_failed": s.handlePaymentFailed,
		"customer.subscription.updated": s.handleSubscriptionUpdated,
		"customer.subscription.deleted": s.handleSubscriptionDeleted,
	}

	return s
}

// Register adds or replaces the handler for an event type. Exposed for tests
// and for collaborators that extend the reconciler.
func (s *WebhookService) Register(eventType string, handler EventHandler) {
	s.handlers[eventType] = handler
}

// Process verifies the delivery and applies it. The only error callers should
// translate into a non-2xx response is ErrInvalidSignature: unverified events
// are never applied (fail closed). Everything else - duplicates, unhandled
// types, handler failures - is acknowledged so the provider stops retrying,
// with failures logged for operator follow-up.
func (s *WebhookService) Process(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.secret)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		logrus.WithError(err).Warn("Webhook signature verification failed")
		return ErrInvalidSignature
	}

	first, err := s.deduper.FirstDelivery(ctx, event.ID)
	if err != nil {
		// Dedup store trouble is not a reason to drop the event: every apply
		// below is idempotent against the ledger's own anchors.
		logrus.WithError(err).WithField("event_id", event.ID).
			Warn("Event dedup check failed; applying anyway")
	} else if !first {
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "duplicate").Inc()
		logrus.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Info("Duplicate webhook delivery ignored")
		return nil
	}

	handler, ok := s.handlers[string(event.Type)]
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "unhandled").Inc()
		logrus.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Info("Unhandled webhook event type acknowledged")
		return nil
	}

	if err := handler(event); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "error").Inc()
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Error("Webhook handler failed; event acknowledged for operator follow-up")
		return nil
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "applied").Inc()
	return nil
}

func (s *WebhookService) handleCheckoutCompleted(event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}

	if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		return fmt.Errorf("checkout session %s carries no payment intent", session.ID)
	}

	return s.applySucceeded(session.PaymentIntent.ID)
}

func (s *WebhookService) handlePaymentSucceeded(event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to decode payment intent: %w", err)
	}

	return s.applySucceeded(intent.ID)
}

func (s *WebhookService) applySucceeded(paymentReference string) error {
	err := s.ledger.MarkSucceeded(paymentReference)
	if errors.Is(err, ErrNotFound) {
		// Reference unknown locally: charge opened elsewhere or row lost.
		// Acknowledged upstream, but this needs eyes.
		logrus.WithField("payment_reference", paymentReference).
			Warn("Success event for unknown payment reference")
		return nil
	}
	return err
}

func (s *WebhookService) handlePaymentFailed(event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to decode payment intent: %w", err)
	}

	reason := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}

	err := s.ledger.MarkFailed(intent.ID, reason)
	if errors.Is(err, ErrNotFound) {
		logrus.WithField("payment_reference", intent.ID).
			Warn("Failure event for unknown payment reference")
		return nil
	}
	return err
}

func (s *WebhookService) handleSubscriptionUpdated(event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}

	var userID *uuid.UUID
	if raw, ok := subscription.Metadata["user_id"]; ok {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = &parsed
		}
	}

	priceRef := ""
	if subscription.Items != nil && len(subscription.Items.Data) > 0 && subscription.Items.Data[0].Price != nil {
		priceRef = subscription.Items.Data[0].Price.ID
	}

	var periodEnd *time.Time
	if subscription.CurrentPeriodEnd > 0 {
		t := time.Unix(subscription.CurrentPeriodEnd, 0)
		periodEnd = &t
	}

	err := s.subscriptions.ApplyUpdate(subscription.ID, userID, priceRef, mapSubscriptionStatus(subscription.Status), periodEnd)
	if errors.Is(err, ErrNotFound) {
		// Unattributable subscription; logged inside, nothing to apply.
		return nil
	}
	return err
}

func (s *WebhookService) handleSubscriptionDeleted(event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}

	canceledAt := time.Now()
	if subscription.CanceledAt > 0 {
		canceledAt = time.Unix(subscription.CanceledAt, 0)
	}

	return s.subscriptions.ApplyDeleted(subscription.ID, canceledAt)
}

func mapSubscriptionStatus(status stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusPastDue
	}
}
