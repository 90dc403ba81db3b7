package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-service/apperrors"
	"marketplace-service/config"
	"marketplace-service/kafka"
	"marketplace-service/models"
	"marketplace-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateOrderRequest struct {
	Items         []CreateOrderItem `json:"items" binding:"required,dive"`
	ScheduledDate *time.Time        `json:"scheduled_date"`
}

type CreateOrderItem struct {
	ServiceID uuid.UUID `json:"service_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
	Notes     string    `json:"notes"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService owns checkout and the role-scoped order lifecycle.
type OrderService struct {
	orders   repository.OrderRepository
	listings repository.ServiceListingRepository
	producer kafka.ProducerAPI
	notifier Notifier
	rates    config.FeeRates
	currency string
	logger   *zap.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	listings repository.ServiceListingRepository,
	producer kafka.ProducerAPI,
	notifier Notifier,
	rates config.FeeRates,
	currency string,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		listings: listings,
		producer: producer,
		notifier: notifier,
		rates:    rates,
		currency: currency,
		logger:   logger,
	}
}

// CreateOrder turns a checkout request into a durable pending order.
// Listing name and price are snapshotted into the items, so later catalog
// changes never affect this order.
func (s *OrderService) CreateOrder(ctx context.Context, clientID uuid.UUID, req *CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrValidation, fmt.Errorf("at least one item is required"))
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, apperrors.Wrap(apperrors.ErrValidation, fmt.Errorf("quantity must be at least 1"))
		}
		ids = append(ids, item.ServiceID)
	}

	listings, err := s.listings.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	byID := make(map[uuid.UUID]models.ServiceListing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}

	orderID := uuid.New()
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		listing, ok := byID[item.ServiceID]
		if !ok {
			return nil, apperrors.Wrap(apperrors.ErrValidation,
				fmt.Errorf("service %s does not exist or is inactive", item.ServiceID))
		}
		items = append(items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     orderID,
			ServiceID:   listing.ID,
			ServiceName: listing.Name,
			UnitPrice:   listing.Price,
			Quantity:    item.Quantity,
			TotalPrice:  ItemTotal(listing.Price, item.Quantity),
			Notes:       item.Notes,
		})
	}

	totals := CalculateOrderTotals(items, s.rates.TaxRate)
	order := &models.Order{
		ID:            orderID,
		OrderNumber:   generateOrderNumber(),
		ClientID:      clientID,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		TotalPrice:    totals.TotalPrice,
		Currency:      s.currency,
		Status:        models.OrderPending,
		ScheduledDate: req.ScheduledDate,
		Items:         items,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create order",
			zap.String("client_id", clientID.String()),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	s.publishEvent(order, "order.created", "")

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)
	return order, nil
}

// UpdateOrderStatus applies a role-scoped status transition requested by an
// authenticated actor. Persistence uses a conditional write so two
// concurrent requests cannot both win.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target models.OrderStatus, reason string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	if err := s.checkOwnership(ctx, actor, order); err != nil {
		return nil, err
	}

	prev := order.Status
	if err := Transition(order, target, actor); err != nil {
		return nil, err
	}

	var completedAt, cancelledAt *time.Time
	if target == models.OrderCompleted {
		completedAt = order.CompletedAt
	}
	if target == models.OrderCancelled {
		cancelledAt = order.CancelledAt
	}

	applied, err := s.orders.UpdateStatusIfCurrent(ctx, order.ID, prev, target, completedAt, cancelledAt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if !applied {
		return nil, apperrors.ErrConflict
	}

	s.publishEvent(order, "order.status_changed", reason)

	if err := s.notifier.OrderStatusChanged(ctx, order, reason); err != nil {
		s.logger.Error("Order status notification failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	return order, nil
}

// GetClientOrders retrieves paginated orders for a specific client.
func (s *OrderService) GetClientOrders(ctx context.Context, clientID uuid.UUID, page, limit int) (*OrderListResponse, error) {
	orders, total, err := s.orders.FindByClientID(ctx, clientID, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders",
			zap.String("client_id", clientID.String()),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return s.listResponse(orders, total, page, limit), nil
}

// GetAllOrders retrieves paginated orders across clients (admin only).
func (s *OrderService) GetAllOrders(ctx context.Context, page, limit int) (*OrderListResponse, error) {
	orders, total, err := s.orders.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch all orders", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return s.listResponse(orders, total, page, limit), nil
}

// GetOrderByID retrieves one order, scoped to the requesting actor.
func (s *OrderService) GetOrderByID(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if err := s.checkOwnership(ctx, actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// checkOwnership enforces who may touch an order: the owning client, a
// vendor with at least one service in it, or an admin.
func (s *OrderService) checkOwnership(ctx context.Context, actor Actor, order *models.Order) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleVendor:
		serviceIDs := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			serviceIDs = append(serviceIDs, item.ServiceID)
		}
		owns, err := s.listings.VendorOwnsAny(ctx, actor.UserID, serviceIDs)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
		if !owns {
			return apperrors.ErrForbidden
		}
		return nil
	default:
		if order.ClientID != actor.UserID {
			return apperrors.ErrForbidden
		}
		return nil
	}
}

func (s *OrderService) publishEvent(order *models.Order, eventType, reason string) {
	err := s.producer.SendOrderEvent(models.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		ClientID:    order.ClientID.String(),
		Status:      string(order.Status),
		Reason:      reason,
		Amount:      order.TotalPrice.StringFixed(2),
		Currency:    order.Currency,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("order_id", order.ID.String()),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

func (s *OrderService) listResponse(orders []models.Order, total int64, page, limit int) *OrderListResponse {
	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

// generateOrderNumber builds a human-readable, unique order number like
// ORD-20260828-1A2B3C4D.
func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
