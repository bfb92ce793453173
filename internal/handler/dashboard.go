package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solace-app/solace-gateway/internal/quota"
	"github.com/solace-app/solace-gateway/internal/service"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
	quotaManager     *quota.Manager
}

func NewDashboardHandler(dashboardService *service.DashboardService, quotaManager *quota.Manager) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		quotaManager:     quotaManager,
	}
}

// GET /api/dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	userID, ok := subjectID(c)
	if !ok {
		return
	}

	dashboard, err := h.dashboardService.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load dashboard",
		})
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// GET /api/usage/tokens
func (h *DashboardHandler) TokenUsage(c *gin.Context) {
	userID, ok := subjectID(c)
	if !ok {
		return
	}

	usage, err := h.quotaManager.MonthlyTokenUsage(c.Request.Context(), userID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load token usage",
		})
		return
	}

	c.JSON(http.StatusOK, usage)
}
