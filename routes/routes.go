package routes

import (
	"marketplace-service/controllers"
	"marketplace-service/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, oc *controllers.OrderController, pc *controllers.PaymentController) {
	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware())
	orders.POST("", oc.CreateOrder)
	orders.GET("", oc.GetOrders)
	orders.GET("/:id", oc.GetOrderByID)
	orders.PATCH("/:id/status", oc.UpdateOrderStatus)

	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	payments.POST("/intent", pc.CreatePaymentIntent)
	payments.POST("/:order_id/refund", pc.RefundPayment)

	// Stripe webhook (no auth, signature-verified)
	r.POST("/stripe/webhook", pc.StripeWebhook)
}
