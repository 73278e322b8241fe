package handler

import (
	"net/http"

	"propfinder/internal/service"

	"github.com/gin-gonic/gin"
)

// ProviderHandler exposes the AI provider roster over HTTP
type ProviderHandler struct {
	orchestrator *service.Orchestrator
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(orchestrator *service.Orchestrator) *ProviderHandler {
	return &ProviderHandler{
		orchestrator: orchestrator,
	}
}

// List handles GET /api/v1/providers
func (h *ProviderHandler) List(c *gin.Context) {
	providers := h.orchestrator.Providers(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"active":    h.orchestrator.ActiveID(),
	})
}

// Switch handles POST /api/v1/providers/switch
func (h *ProviderHandler) Switch(c *gin.Context) {
	var req struct {
		ProviderID string `json:"provider_id" binding:"required"`
		Model      string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	info, err := h.orchestrator.Switch(c.Request.Context(), req.ProviderID, req.Model)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "active": info})
}

// Health handles GET /api/v1/providers/health. It re-probes every
// configured backend rather than serving the cached roster.
func (h *ProviderHandler) Health(c *gin.Context) {
	providers := h.orchestrator.Health(c.Request.Context())

	healthy := 0
	for _, p := range providers {
		if p.Available {
			healthy++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"healthy":   healthy,
		"total":     len(providers),
	})
}
