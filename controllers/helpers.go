package controllers

import (
	"net/http"
	"strconv"

	"marketplace-service/apperrors"
	"marketplace-service/middleware"
	"marketplace-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError maps an application error to its HTTP status and JSON body.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.AsError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}

// requireActor extracts the authenticated actor set by the auth middleware.
func requireActor(c *gin.Context) (services.Actor, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return services.Actor{}, false
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return services.Actor{}, false
	}
	return services.Actor{
		UserID: userUUID,
		Role:   services.ParseRole(middleware.GetRole(c)),
	}, true
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(c *gin.Context) (int, int) {
	const MaxLimit = 100

	pageInt := 1
	limitInt := 10

	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}
	return pageInt, limitInt
}
