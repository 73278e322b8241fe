package handler

import (
	"net/http"
	"strconv"

	"propfinder/internal/model"
	"propfinder/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListingHandler serves indexed listings directly from the
// repository, bypassing the search pipeline
type ListingHandler struct {
	repo          *repository.PostgresRepository
	embeddingDims int
}

// NewListingHandler creates a new listing handler
func NewListingHandler(repo *repository.PostgresRepository, embeddingDims int) *ListingHandler {
	return &ListingHandler{
		repo:          repo,
		embeddingDims: embeddingDims,
	}
}

// Get handles GET /api/v1/listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	listingID := c.Param("id")

	listing, err := h.repo.GetListingByID(c.Request.Context(), listingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listing: " + err.Error()})
		return
	}
	if listing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// Similar handles GET /api/v1/listings/:id/similar
func (h *ListingHandler) Similar(c *gin.Context) {
	listingID := c.Param("id")

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	listings, err := h.repo.SimilarListings(c.Request.Context(), listingID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find similar listings: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings, "count": len(listings)})
}

// BatchEmbeddings handles POST /api/v1/embeddings/batch
func (h *ListingHandler) BatchEmbeddings(c *gin.Context) {
	var req model.EmbeddingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Embeddings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No embeddings provided"})
		return
	}

	embeddings := make(map[string][]float32, len(req.Embeddings))
	for i, item := range req.Embeddings {
		if len(item.Embedding) != h.embeddingDims {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid embedding dimension at index " + strconv.Itoa(i) +
					", expected " + strconv.Itoa(h.embeddingDims),
			})
			return
		}
		embeddings[item.ID] = item.Embedding
	}

	success, errs := h.repo.BatchUpdateEmbeddings(c.Request.Context(), embeddings)

	response := model.EmbeddingBatchResponse{
		Success: success,
		Failed:  len(req.Embeddings) - success,
		Errors:  errs,
	}

	if len(errs) > 0 {
		c.JSON(http.StatusPartialContent, response)
	} else {
		c.JSON(http.StatusOK, response)
	}
}
