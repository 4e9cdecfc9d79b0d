// Package billing turns provider webhook events into account state changes,
// exactly once per event id.
package billing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/mtarnawa/hanashi/internal/entitlement"
	"github.com/mtarnawa/hanashi/internal/model"
	"github.com/mtarnawa/hanashi/internal/store"
)

// Result reports what a webhook event did. Duplicate means the event id was
// seen before and nothing was applied.
type Result struct {
	Duplicate bool
	Applied   string
}

// Processor applies billing events against account state. The event id is
// claimed in billed_events before any state change, so redelivered events
// are absorbed without double-applying.
type Processor struct {
	events   *store.EventStore
	accounts *store.AccountStore
	logger   *slog.Logger
}

func NewProcessor(events *store.EventStore, accounts *store.AccountStore, logger *slog.Logger) *Processor {
	return &Processor{events: events, accounts: accounts, logger: logger}
}

// Apply processes one webhook event. payload is the raw event object JSON
// (stripe's event.Data.Raw). Event types we do not handle are still claimed
// and acknowledged so the provider stops redelivering them.
func (p *Processor) Apply(eventID, eventType string, payload []byte) (Result, error) {
	fresh, err := p.events.Insert(eventID, eventType)
	if err != nil {
		return Result{}, err
	}
	if !fresh {
		p.logger.Info("duplicate billing event", "event_id", eventID, "event_type", eventType)
		return Result{Duplicate: true}, nil
	}

	switch eventType {
	case "checkout.session.completed":
		return p.applyCheckoutCompleted(payload)
	case "invoice.paid":
		return p.applyInvoicePaid(payload)
	case "invoice.payment_failed":
		return p.applyInvoicePaymentFailed(payload)
	case "customer.subscription.updated":
		return p.applySubscriptionUpdated(payload)
	case "customer.subscription.deleted":
		return p.applySubscriptionDeleted(payload)
	default:
		p.logger.Info("ignoring billing event", "event_id", eventID, "event_type", eventType)
		return Result{Applied: "ignored"}, nil
	}
}

func (p *Processor) applyCheckoutCompleted(payload []byte) (Result, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Result{}, fmt.Errorf("unmarshal checkout session: %w", err)
	}

	accountID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		p.logger.Warn("checkout session without usable client reference", "reference", sess.ClientReferenceID)
		return Result{Applied: "ignored"}, nil
	}

	if sess.Customer != nil {
		if err := p.accounts.UpdateStripeCustomerID(accountID, sess.Customer.ID); err != nil {
			return Result{}, err
		}
	}

	switch sess.Mode {
	case stripe.CheckoutSessionModePayment:
		// One-off trial package purchase.
		ok, err := p.accounts.GrantTrialPackage(accountID, entitlement.TrialPackageCredits, entitlement.MaxTrialPurchases)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			// Paid checkout slipped past the allowance gate; needs a manual refund.
			p.logger.Error("trial package purchase past allowance", "account_id", accountID)
			return Result{Applied: "ignored"}, nil
		}
		return Result{Applied: "trial_package"}, nil

	case stripe.CheckoutSessionModeSubscription:
		if sess.Subscription == nil {
			p.logger.Warn("subscription checkout without subscription", "account_id", accountID)
			return Result{Applied: "ignored"}, nil
		}
		if err := p.accounts.ActivatePaidPlan(accountID, sess.Subscription.ID, entitlement.PaidCycleTokens); err != nil {
			return Result{}, err
		}
		return Result{Applied: "subscription_started"}, nil

	default:
		p.logger.Warn("checkout session in unexpected mode", "mode", sess.Mode, "account_id", accountID)
		return Result{Applied: "ignored"}, nil
	}
}

// subscriptionIDFromInvoice digs the subscription reference out of an
// invoice's parent.
func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

func (p *Processor) applyInvoicePaid(payload []byte) (Result, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(payload, &invoice); err != nil {
		return Result{}, fmt.Errorf("unmarshal invoice: %w", err)
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return Result{Applied: "ignored"}, nil
	}

	ok, err := p.accounts.RenewCycle(subID, entitlement.PaidCycleTokens)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		p.logger.Warn("invoice.paid for unknown subscription", "subscription_id", subID)
		return Result{Applied: "ignored"}, nil
	}
	return Result{Applied: "cycle_renewed"}, nil
}

func (p *Processor) applyInvoicePaymentFailed(payload []byte) (Result, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(payload, &invoice); err != nil {
		return Result{}, fmt.Errorf("unmarshal invoice: %w", err)
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return Result{Applied: "ignored"}, nil
	}

	ok, err := p.accounts.SetSubscriptionStatus(subID, model.SubscriptionPastDue)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		p.logger.Warn("invoice.payment_failed for unknown subscription", "subscription_id", subID)
		return Result{Applied: "ignored"}, nil
	}
	return Result{Applied: "past_due"}, nil
}

func (p *Processor) applySubscriptionUpdated(payload []byte) (Result, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(payload, &sub); err != nil {
		return Result{}, fmt.Errorf("unmarshal subscription: %w", err)
	}

	status, known := internalStatus(sub.Status)
	if !known {
		p.logger.Info("subscription status with no internal mapping", "status", sub.Status)
		return Result{Applied: "ignored"}, nil
	}

	ok, err := p.accounts.SetSubscriptionStatus(sub.ID, status)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		p.logger.Warn("subscription update for unknown subscription", "subscription_id", sub.ID)
		return Result{Applied: "ignored"}, nil
	}
	return Result{Applied: "status_updated"}, nil
}

func (p *Processor) applySubscriptionDeleted(payload []byte) (Result, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(payload, &sub); err != nil {
		return Result{}, fmt.Errorf("unmarshal subscription: %w", err)
	}

	ok, err := p.accounts.CancelSubscription(sub.ID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		p.logger.Warn("subscription deletion for unknown subscription", "subscription_id", sub.ID)
		return Result{Applied: "ignored"}, nil
	}
	return Result{Applied: "subscription_cancelled"}, nil
}

// internalStatus maps a provider subscription status onto ours. Transitional
// provider states with no account-level meaning report false.
func internalStatus(s stripe.SubscriptionStatus) (string, bool) {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.SubscriptionActive, true
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.SubscriptionPastDue, true
	case stripe.SubscriptionStatusCanceled:
		return model.SubscriptionCancelled, true
	default:
		return "", false
	}
}
