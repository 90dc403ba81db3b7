package controllers

import (
	"net/http"

	"marketplace-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentController struct {
	Payments *services.PaymentService
	Webhooks *services.WebhookService
	Logger   *zap.Logger
}

// CreatePaymentIntent opens a processor payment for one of the client's
// pending orders and returns the confirmation token for the frontend.
func (pc *PaymentController) CreatePaymentIntent(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req struct {
		OrderID   string `json:"order_id" binding:"required"`
		ReturnURL string `json:"return_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	resp, svcErr := pc.Payments.CreatePaymentIntent(c.Request.Context(), orderID, actor.UserID)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefundPayment initiates a processor refund for an order's completed
// payment (admin only). The ledger updates when the refund webhook arrives.
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	if svcErr := pc.Payments.RefundPayment(c.Request.Context(), actor, orderID); svcErr != nil {
		respondError(c, svcErr)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "refund_initiated"})
}
