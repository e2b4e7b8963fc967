package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resdto "marmite-orders/internal/handler/dto/response"
	"marmite-orders/internal/handler/middleware"
	"marmite-orders/internal/usecase/commands"
	"marmite-orders/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WebhookHandler struct {
	webhookCommands commands.WebhookCommands
}

func NewWebhookHandler(webhookCommands commands.WebhookCommands) *WebhookHandler {
	return &WebhookHandler{
		webhookCommands: webhookCommands,
	}
}

// @Summary Payment provider webhook
// @Description Ingest a payment notification. Always acknowledges with 200 so the provider never retries; problems are logged and surfaced through the stats endpoint.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string false "Provider signature"
// @Success 200 {object} map[string]bool
// @Router /orders/stripe-webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.webhookCommands.HandleNotification(payload, signature); err != nil {
		// Acknowledge anyway: a redelivery of the same broken payload
		// would fail identically, and the provider disables endpoints
		// that keep erroring.
		slog.Error("webhook ingestion failed", "error", err.Error())
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// @Summary Sync payment status
// @Description Pull the payment object from the provider and reconcile the order with it
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.PaymentStatusResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /orders/{id}/sync-payment-status [post]
func (h *WebhookHandler) SyncPaymentStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}
	role, _ := middleware.GetUserRole(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID format",
		})
		return
	}

	view, err := h.webhookCommands.SyncPaymentStatus(c.Request.Context(), orderID, userID, string(role))
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Order not found",
			})
		case errors.Is(err, commands.ErrOrderAccessDenied), errors.Is(err, queries.ErrOrderAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Order does not belong to you",
			})
		case errors.Is(err, commands.ErrNoPaymentIntent):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Order has no payment reference to sync",
			})
		case errors.Is(err, commands.ErrProviderSync):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Payment provider unavailable",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromPaymentStatusView(view))
}

// @Summary Webhook statistics
// @Description Counters and the most recent failures of webhook processing
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} webhookmon.Stats
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /orders/webhook-stats [get]
func (h *WebhookHandler) GetWebhookStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.webhookCommands.Stats())
}

// @Summary Clear webhook history
// @Description Drop recorded webhook events and failures. Without a parameter the whole ledger is reset; with older_than_hours only entries older than that age are purged.
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param older_than_hours query int false "Purge only entries older than this many hours"
// @Success 200 {object} map[string]int
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /orders/clear-webhook-history [post]
func (h *WebhookHandler) ClearWebhookHistory(c *gin.Context) {
	if raw := c.Query("older_than_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "older_than_hours must be a positive integer",
			})
			return
		}
		removed := h.webhookCommands.ClearHistoryOlderThan(time.Duration(hours) * time.Hour)
		c.JSON(http.StatusOK, gin.H{"removed": removed})
		return
	}

	h.webhookCommands.ClearHistory()
	c.Status(http.StatusNoContent)
}
