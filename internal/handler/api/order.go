package api

import (
	"errors"
	"net/http"

	reqdto "marmite-orders/internal/handler/dto/request"
	resdto "marmite-orders/internal/handler/dto/response"
	"marmite-orders/internal/handler/middleware"
	"marmite-orders/internal/usecase/commands"
	"marmite-orders/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orderCommands commands.OrderCommands
	orderQueries  queries.OrderQueries
}

func NewOrderHandler(orderCommands commands.OrderCommands, orderQueries queries.OrderQueries) *OrderHandler {
	return &OrderHandler{
		orderCommands: orderCommands,
		orderQueries:  orderQueries,
	}
}

// @Summary Create order
// @Description Place an order against a batch; portions are reserved atomically
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.CreateOrderRequest true "Order request"
// @Success 201 {object} resdto.OrderResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]any
// @Failure 422 {object} map[string]string
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	var req reqdto.CreateOrderRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	view, err := h.orderCommands.CreateOrder(c.Request.Context(), req, userID)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resdto.FromOrderView(view))
}

// @Summary Update order
// @Description Change quantity, batch, comment or payment reference of an order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param request body reqdto.UpdateOrderRequest true "Fields to change"
// @Success 200 {object} resdto.OrderResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]any
// @Router /orders/{id} [patch]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	userID, role, orderID, ok := h.actorAndOrderID(c)
	if !ok {
		return
	}

	var req reqdto.UpdateOrderRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	view, err := h.orderCommands.UpdateOrder(c.Request.Context(), req, orderID, userID, role)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resdto.FromOrderView(view))
}

// @Summary Cancel order
// @Description Cancel an order; the portions return to the batch
// @Tags orders
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, role, orderID, ok := h.actorAndOrderID(c)
	if !ok {
		return
	}

	if err := h.orderCommands.CancelOrder(c.Request.Context(), orderID, userID, role); err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Get order
// @Description Get order by ID; customers only see their own orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.OrderResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, role, orderID, ok := h.actorAndOrderID(c)
	if !ok {
		return
	}

	view, err := h.orderQueries.GetByID(c.Request.Context(), userID, role, orderID)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resdto.FromOrderView(view))
}

// @Summary Get user orders
// @Description List the current user's orders, newest first
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {array} resdto.OrderListResponse
// @Failure 401 {object} map[string]string
// @Router /orders [get]
func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	items, err := h.orderQueries.ListByUser(c.Request.Context(), userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	response := make([]*resdto.OrderListResponse, len(items))
	for i, item := range items {
		response[i] = resdto.FromOrderListItem(item)
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Get payment status
// @Description Current lifecycle and payment status of an order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.PaymentStatusResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id}/payment-status [get]
func (h *OrderHandler) GetPaymentStatus(c *gin.Context) {
	userID, role, orderID, ok := h.actorAndOrderID(c)
	if !ok {
		return
	}

	view, err := h.orderQueries.GetPaymentStatus(c.Request.Context(), userID, role, orderID)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resdto.FromPaymentStatusView(view))
}

func (h *OrderHandler) actorAndOrderID(c *gin.Context) (uuid.UUID, string, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return uuid.Nil, "", uuid.Nil, false
	}
	role, _ := middleware.GetUserRole(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID format",
		})
		return uuid.Nil, "", uuid.Nil, false
	}

	return userID, string(role), orderID, true
}

func (h *OrderHandler) respondOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commands.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
	case errors.Is(err, commands.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Batch not found",
		})
	case errors.Is(err, commands.ErrNoUpcomingBatch):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No upcoming batch available",
		})
	case errors.Is(err, commands.ErrOrderAccessDenied), errors.Is(err, queries.ErrOrderAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Order does not belong to you",
		})
	case errors.Is(err, commands.ErrOrderAlreadyCanceled):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Order is already canceled",
		})
	case errors.Is(err, commands.ErrCapacityExceeded):
		detail := gin.H{}
		var capErr *commands.CapacityError
		if errors.As(err, &capErr) {
			detail["requested"] = capErr.Requested
			detail["remaining"] = capErr.Remaining
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Not enough portions remaining",
			"detail": detail,
		})
	case errors.Is(err, commands.ErrInvalidBatchRef):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid batch reference",
		})
	case errors.Is(err, commands.ErrDomainValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Domain validation failed",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
