package controllers

import (
	"net/http"

	"marketplace-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderController struct {
	orderService *services.OrderService
}

func NewOrderController(orderService *services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateOrder handles checkout requests.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, err := oc.orderService.CreateOrder(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// GetOrders returns paginated orders: the actor's own for clients, all
// orders for admins.
func (oc *OrderController) GetOrders(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, limit := parsePaginationParams(c)

	var err error
	var result *services.OrderListResponse
	if actor.Role == services.RoleAdmin {
		result, err = oc.orderService.GetAllOrders(c.Request.Context(), page, limit)
	} else {
		result, err = oc.orderService.GetClientOrders(c.Request.Context(), actor.UserID, page, limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order scoped to the actor.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	order, svcErr := oc.orderService.GetOrderByID(c.Request.Context(), actor, orderID)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus applies a role-scoped status transition.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	target, err := services.ParseOrderStatus(req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	order, svcErr := oc.orderService.UpdateOrderStatus(c.Request.Context(), actor, orderID, target, req.Reason)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}
