// internal/services/stripe_provider.go
package services

import (
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/transfer"
)

// PaymentIntent is the provider-side charge handle returned at checkout. ID
// becomes the transaction's payment_reference, the idempotency anchor the
// webhook reconciler matches against.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// PaymentProvider opens charges with the external payment processor.
type PaymentProvider interface {
	CreateIntent(amount int64, currency, paymentMethod string, metadata map[string]string) (*PaymentIntent, error)
}

// PayoutProvider moves settled funds to a seller's external account and
// returns the provider-assigned payout id.
type PayoutProvider interface {
	CreateTransfer(amount int64, currency, destination string, metadata map[string]string) (string, error)
}

// StripeProvider implements both provider interfaces against Stripe.
type StripeProvider struct{}

func NewStripeProvider(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{}
}

func (s *StripeProvider) CreateIntent(amount int64, currency, paymentMethod string, metadata map[string]string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	if paymentMethod != "" {
		params.PaymentMethod = stripe.String(paymentMethod)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (s *StripeProvider) CreateTransfer(amount int64, currency, destination string, metadata map[string]string) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(currency),
		Destination: stripe.String(destination),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	tr, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create transfer: %w", err)
	}

	return tr.ID, nil
}
