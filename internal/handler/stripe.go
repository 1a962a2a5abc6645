package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"audio-embed-service/internal/dto"
	"audio-embed-service/internal/metrics"
	"audio-embed-service/internal/middleware"
	"audio-embed-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

type StripeHandler struct {
	webhookService     service.WebhookService
	billingService     service.BillingService
	checkoutService    service.CheckoutService
	entitlementService service.EntitlementService
}

func NewStripeHandler(
	webhookService service.WebhookService,
	billingService service.BillingService,
	checkoutService service.CheckoutService,
	entitlementService service.EntitlementService,
) *StripeHandler {
	return &StripeHandler{
		webhookService:     webhookService,
		billingService:     billingService,
		checkoutService:    checkoutService,
		entitlementService: entitlementService,
	}
}

// Webhook verifies a Stripe delivery, queues its work and acknowledges it.
// Processing happens on the worker pool, so its failures never reach Stripe.
func (h *StripeHandler) Webhook(c echo.Context) error {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, webhookBodyLimit)
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		status = http.StatusBadRequest
		return c.JSON(status, dto.ErrorResponse{Error: "failed to read request body"})
	}

	handled, err := h.webhookService.HandleWebhook(req.Context(), req.Header.Get("Stripe-Signature"), payload)
	if handled != "" {
		eventType = handled
	}

	switch {
	case errors.Is(err, service.ErrMissingSignature):
		status = http.StatusBadRequest
		return c.JSON(status, dto.ErrorResponse{Error: "No signature found"})
	case errors.Is(err, service.ErrInvalidSignature):
		log.Warn().Err(err).Msg("stripe webhook signature verification failed")
		status = http.StatusBadRequest
		return c.JSON(status, dto.ErrorResponse{Error: "Webhook signature verification failed"})
	case err != nil:
		log.Error().Err(err).Str("event_type", eventType).Msg("stripe webhook not accepted")
		status = http.StatusInternalServerError
		return c.JSON(status, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(status, dto.WebhookReceivedResponse{Received: true})
}

func (h *StripeHandler) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()
	account := middleware.AccountFromContext(c)

	result, err := h.billingService.CancelAtPeriodEnd(ctx, account.ID)
	switch {
	case errors.Is(err, service.ErrNoCustomer):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Customer not found"})
	case errors.Is(err, service.ErrNoSubscription):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Subscription not found"})
	case errors.Is(err, service.ErrNoSubscriptionID):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No active subscription to cancel"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

func (h *StripeHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	account := middleware.AccountFromContext(c)

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid req body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	result, err := h.checkoutService.CreateCheckoutSession(ctx, account, &req)
	if err != nil {
		log.Error().Err(err).Str("account_id", account.ID).Msg("checkout session failed")
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

func (h *StripeHandler) CustomerPortal(c echo.Context) error {
	ctx := c.Request().Context()
	account := middleware.AccountFromContext(c)

	var req dto.PortalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid req body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	result, err := h.checkoutService.CreatePortalSession(ctx, account, &req)
	switch {
	case errors.Is(err, service.ErrNoCustomer):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Customer not found"})
	case err != nil:
		log.Error().Err(err).Str("account_id", account.ID).Msg("billing portal session failed")
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

func (h *StripeHandler) BillingStatus(c echo.Context) error {
	ctx := c.Request().Context()
	account := middleware.AccountFromContext(c)

	status, err := h.entitlementService.BillingStatus(ctx, account.ID)
	if err != nil {
		log.Error().Err(err).Str("account_id", account.ID).Msg("billing status failed")
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, status)
}
