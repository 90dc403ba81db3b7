package services

import (
	"fmt"
	"time"

	"marketplace-service/apperrors"
	"marketplace-service/models"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient Role = "client"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// Actor identifies who is requesting an order transition. System actors are
// webhook-driven and bypass role checks but never the transition table.
type Actor struct {
	UserID uuid.UUID
	Role   Role
	System bool
}

func SystemActor() Actor {
	return Actor{System: true}
}

func ParseRole(s string) Role {
	switch Role(s) {
	case RoleVendor, RoleAdmin:
		return Role(s)
	default:
		return RoleClient
	}
}

// allowedTransitions is the full order status graph. The only back-edge is
// completed -> refunded; cancelled and refunded are terminal.
func allowedTransitions(from models.OrderStatus) []models.OrderStatus {
	switch from {
	case models.OrderPending:
		return []models.OrderStatus{models.OrderConfirmed, models.OrderCancelled}
	case models.OrderConfirmed:
		return []models.OrderStatus{models.OrderInProgress, models.OrderCancelled}
	case models.OrderInProgress:
		return []models.OrderStatus{models.OrderCompleted, models.OrderCancelled}
	case models.OrderCompleted:
		return []models.OrderStatus{models.OrderRefunded}
	default:
		return nil
	}
}

func canTransition(from, to models.OrderStatus) bool {
	for _, allowed := range allowedTransitions(from) {
		if allowed == to {
			return true
		}
	}
	return false
}

// roleAllows layers the permission rules on top of the table. Ownership
// (client owns the order, vendor has a service in it) is checked by the
// caller before this point.
func roleAllows(role Role, from, to models.OrderStatus) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleVendor:
		switch to {
		case models.OrderConfirmed, models.OrderInProgress, models.OrderCompleted, models.OrderCancelled:
			return true
		}
		return false
	case RoleClient:
		return to == models.OrderCancelled && from == models.OrderPending
	default:
		return false
	}
}

// systemAllows restricts webhook-driven transitions to payment success and
// processor refunds.
func systemAllows(from, to models.OrderStatus) bool {
	if from == models.OrderPending && to == models.OrderConfirmed {
		return true
	}
	if from == models.OrderCompleted && to == models.OrderRefunded {
		return true
	}
	return false
}

// Transition validates the requested status change and applies it to the
// order in memory, stamping CompletedAt/CancelledAt when those states are
// entered. Re-requesting the current status is rejected, not absorbed.
// Persisting the change is the caller's job and must use a conditional
// write against the previous status.
func Transition(order *models.Order, target models.OrderStatus, actor Actor) error {
	if order == nil {
		return apperrors.ErrOrderNotFound
	}
	if order.Status == target {
		return apperrors.ErrInvalidTransition
	}
	if !canTransition(order.Status, target) {
		return apperrors.ErrInvalidTransition
	}
	if actor.System {
		if !systemAllows(order.Status, target) {
			return apperrors.ErrInvalidTransition
		}
	} else if !roleAllows(actor.Role, order.Status, target) {
		return apperrors.ErrForbidden
	}

	now := time.Now()
	switch target {
	case models.OrderCompleted:
		if order.CompletedAt == nil {
			order.CompletedAt = &now
		}
	case models.OrderCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}
	order.Status = target
	return nil
}

// ParseOrderStatus validates a client-supplied status string.
func ParseOrderStatus(s string) (models.OrderStatus, error) {
	switch models.OrderStatus(s) {
	case models.OrderPending, models.OrderConfirmed, models.OrderInProgress,
		models.OrderCompleted, models.OrderCancelled, models.OrderRefunded:
		return models.OrderStatus(s), nil
	default:
		return "", apperrors.Wrap(apperrors.ErrValidation, fmt.Errorf("unknown order status %q", s))
	}
}
