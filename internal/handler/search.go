package handler

import (
	"errors"
	"net/http"

	"propfinder/internal/currency"
	"propfinder/internal/model"
	"propfinder/internal/service"

	"github.com/gin-gonic/gin"
)

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.searchService.RunSearch(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, currency.ErrUnsupportedCurrency) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetSearch handles GET /api/v1/search/:id
func (h *SearchHandler) GetSearch(c *gin.Context) {
	searchID := c.Param("id")

	response, ok := h.searchService.GetSearch(searchID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Search not found"})
		return
	}

	c.JSON(http.StatusOK, response)
}
