package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const maxWebhookBodyBytes = int64(65536)

// CreateCheckoutSession starts a Stripe Checkout Session for the caller.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	s.billingRedirect(c, "checkout", Billing.CheckoutURL)
}

// CreatePortalSession creates a Stripe Customer Portal session for the caller.
func (s *Server) CreatePortalSession(c *gin.Context) {
	s.billingRedirect(c, "portal", Billing.PortalURL)
}

func (s *Server) billingRedirect(c *gin.Context, kind string, create func(Billing, context.Context, string) (string, error)) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	if s.billing == nil {
		respondError(c, http.StatusInternalServerError, "billing not configured")
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.log.ErrorContext(ctx, "load user failed", "user_id", id.UserID, "err", err)
		respondError(c, http.StatusInternalServerError, "failed to prepare billing")
		return
	}

	customerID, err := s.ensureStripeCustomer(ctx, user)
	if err != nil {
		s.log.ErrorContext(ctx, "ensureStripeCustomer failed", "user_id", user.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "failed to prepare billing")
		return
	}

	url, err := create(s.billing, ctx, customerID)
	if err != nil {
		s.log.ErrorContext(ctx, "stripe session failed", "kind", kind, "user_id", user.ID, "err", err)
		if errors.Is(err, ErrBillingNotConfigured) {
			respondError(c, http.StatusInternalServerError, "billing not configured")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to create "+kind+" session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// StripeWebhook handles Stripe subscription events and updates subscription state.
func (s *Server) StripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		s.log.WarnContext(ctx, "stripe webhook read failed", "err", err)
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	endpointSecret := s.cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		s.log.ErrorContext(ctx, "stripe webhook secret missing")
		respondError(c, http.StatusInternalServerError, "webhook not configured")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		s.log.WarnContext(ctx, "stripe webhook signature failed", "err", err)
		respondError(c, http.StatusBadRequest, "signature verification failed")
		return
	}

	status, err := s.applyStripeEvent(c, event)
	webhookEventsTotal.WithLabelValues(string(event.Type), http.StatusText(status)).Inc()
	if err != nil {
		s.log.ErrorContext(ctx, "stripe webhook failed", "type", event.Type, "err", err)
		respondError(c, status, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var (
	errInvalidEventPayload = errors.New("invalid event payload")
	errMissingCustomer     = errors.New("missing customer id")
	errUpdateUser          = errors.New("failed to update user")
)

// applyStripeEvent returns the HTTP status to answer with and, on failure,
// an error safe to show to the caller.
func (s *Server) applyStripeEvent(c *gin.Context, event stripe.Event) (int, error) {
	var (
		customerID string
		status     models.SubscriptionStatus
		periodEnd  *time.Time
	)

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return http.StatusBadRequest, errInvalidEventPayload
		}
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		status = models.SubscriptionActive

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return http.StatusBadRequest, errInvalidEventPayload
		}
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		status = subscriptionStatusFromStripe(sub.Status)
		if event.Type == "customer.subscription.deleted" {
			status = models.SubscriptionInactive
		}
		if sub.CurrentPeriodEnd > 0 {
			end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			periodEnd = &end
		}

	default:
		// Intentionally ignore unhandled events.
		return http.StatusOK, nil
	}

	if customerID == "" {
		return http.StatusBadRequest, errMissingCustomer
	}

	err := s.store.UpdateSubscriptionByCustomer(c.Request.Context(), customerID, status, periodEnd)
	if errors.Is(err, ErrNotFound) {
		s.log.WarnContext(c.Request.Context(), "stripe event for unknown customer", "customer", customerID, "type", event.Type)
		return http.StatusOK, nil
	}
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "subscription update failed", "customer", customerID, "err", err)
		return http.StatusInternalServerError, errUpdateUser
	}
	s.log.InfoContext(c.Request.Context(), "subscription updated", "customer", customerID, "status", status, "type", event.Type)
	return http.StatusOK, nil
}
