package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mtarnawa/hanashi/internal/billing/stripe"
	"github.com/mtarnawa/hanashi/internal/entitlement"
	"github.com/mtarnawa/hanashi/internal/middleware"
	"github.com/mtarnawa/hanashi/internal/store"
)

type CheckoutHandler struct {
	stripeClient *stripe.Client
	accounts     *store.AccountStore
	returnURL    string
	logger       *slog.Logger
}

func NewCheckoutHandler(sc *stripe.Client, accounts *store.AccountStore, returnURL string, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{stripeClient: sc, accounts: accounts, returnURL: returnURL, logger: logger}
}

// ensureCustomer returns the account's Stripe customer id, creating the
// customer on first use.
func (h *CheckoutHandler) ensureCustomer(accountID int64, externalID string, existing *string) (string, error) {
	if existing != nil && *existing != "" {
		return *existing, nil
	}
	customerID, err := h.stripeClient.CreateCustomer(accountID, externalID)
	if err != nil {
		return "", err
	}
	if err := h.accounts.UpdateStripeCustomerID(accountID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

// Create starts a checkout for either the subscription or a trial credit
// package and returns the provider-hosted URL.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Product string `json:"product"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	customerID, err := h.ensureCustomer(a.ID, a.ExternalID, a.StripeCustomerID)
	if err != nil {
		h.logger.Error("ensure stripe customer", "account_id", a.ID, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider unavailable")
		return
	}

	var url string
	switch req.Product {
	case "trial_package":
		if !entitlement.Resolve(a).CanPurchaseTrialPackage {
			writeError(w, http.StatusForbidden, "trial package purchase limit reached")
			return
		}
		url, err = h.stripeClient.CreateTrialPackageCheckout(customerID, a.ID)
	case "subscription":
		url, err = h.stripeClient.CreateSubscriptionCheckout(customerID, a.ID)
	default:
		writeError(w, http.StatusBadRequest, "unknown product")
		return
	}
	if err != nil {
		h.logger.Error("create checkout", "account_id", a.ID, "product", req.Product, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Portal returns a billing portal URL for subscription self-service.
func (h *CheckoutHandler) Portal(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if a.StripeCustomerID == nil || *a.StripeCustomerID == "" {
		writeError(w, http.StatusConflict, "no billing relationship yet")
		return
	}

	url, err := h.stripeClient.CreateBillingPortalSession(*a.StripeCustomerID, h.returnURL)
	if err != nil {
		h.logger.Error("create billing portal session", "account_id", a.ID, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
