package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StripeWebhook receives processor webhook deliveries. It always answers
// HTTP 200: received=false marks a signature failure, anything else is
// applied (or logged and swallowed) by the reconciler. Returning an HTTP
// error here would only trigger redelivery storms for events this service
// can never resolve.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		pc.Logger.Warn("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": false, "error": "unreadable body"})
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if err := pc.Webhooks.HandleEvent(c.Request.Context(), payload, sig); err != nil {
		c.JSON(http.StatusOK, gin.H{"received": false, "error": "invalid signature"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
