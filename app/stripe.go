package app

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/config"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
)

var ErrBillingNotConfigured = errors.New("billing not configured")

// Billing creates hosted checkout and portal sessions for a Stripe customer.
type Billing interface {
	CreateCustomer(ctx context.Context, u models.User) (string, error)
	CheckoutURL(ctx context.Context, customerID string) (string, error)
	PortalURL(ctx context.Context, customerID string) (string, error)
}

// StripeBilling talks to the Stripe API with the process-wide key.
type StripeBilling struct {
	priceID     string
	frontendURL string
}

// NewStripeBilling wires the Stripe API key. It returns ErrBillingNotConfigured
// when the secret key is empty.
func NewStripeBilling(cfg config.StripeConfig) (*StripeBilling, error) {
	if cfg.SecretKey == "" {
		return nil, ErrBillingNotConfigured
	}
	stripe.Key = cfg.SecretKey
	return &StripeBilling{
		priceID:     cfg.PriceIDProMonthly,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}, nil
}

func (b *StripeBilling) CreateCustomer(ctx context.Context, u models.User) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(u.Email),
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(u.ID, 10),
		},
	}
	if u.Name != "" {
		params.Name = stripe.String(u.Name)
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (b *StripeBilling) CheckoutURL(ctx context.Context, customerID string) (string, error) {
	if b.priceID == "" || b.frontendURL == "" {
		return "", ErrBillingNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(b.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(b.frontendURL + "/billing/success"),
		CancelURL:  stripe.String(b.frontendURL + "/billing/cancel"),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func (b *StripeBilling) PortalURL(ctx context.Context, customerID string) (string, error) {
	if b.frontendURL == "" {
		return "", ErrBillingNotConfigured
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(b.frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := portal.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ensureStripeCustomer returns the user's Stripe customer id, creating and
// storing one on first use.
func (s *Server) ensureStripeCustomer(ctx context.Context, u models.User) (string, error) {
	if u.StripeCustomerID != "" {
		return u.StripeCustomerID, nil
	}
	id, err := s.billing.CreateCustomer(ctx, u)
	if err != nil {
		return "", err
	}
	if err := s.store.SetStripeCustomer(ctx, u.ID, id); err != nil {
		return "", err
	}
	return id, nil
}

// subscriptionStatusFromStripe maps Stripe's lifecycle onto the two states
// the quota policy understands.
func subscriptionStatusFromStripe(status stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionActive
	default:
		return models.SubscriptionInactive
	}
}
