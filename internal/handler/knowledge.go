package handler

import (
	"net/http"
	"strconv"

	"propfinder/internal/vectorstore"

	"github.com/gin-gonic/gin"
)

// KnowledgeHandler manages the local document collections used for
// retrieval context
type KnowledgeHandler struct {
	store *vectorstore.Store
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(store *vectorstore.Store) *KnowledgeHandler {
	return &KnowledgeHandler{
		store: store,
	}
}

type addDocumentsRequest struct {
	Documents []vectorstore.Document `json:"documents" binding:"required"`
}

// AddDocuments handles POST /api/v1/knowledge/:collection/documents
func (h *KnowledgeHandler) AddDocuments(c *gin.Context) {
	collection := c.Param("collection")

	var req addDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Documents) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No documents provided"})
		return
	}

	if err := h.store.AddDocuments(c.Request.Context(), collection, req.Documents); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add documents: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "added": len(req.Documents)})
}

// Search handles GET /api/v1/knowledge/:collection/search
func (h *KnowledgeHandler) Search(c *gin.Context) {
	collection := c.Param("collection")
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter 'q'"})
		return
	}

	topK := 5
	if raw := c.Query("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid top_k"})
			return
		}
		topK = parsed
	}

	minScore := 0.0
	if raw := c.Query("min_score"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_score"})
			return
		}
		minScore = parsed
	}

	results, err := h.store.Search(c.Request.Context(), collection, query, topK, minScore)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// Stats handles GET /api/v1/knowledge/stats
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"collections": h.store.GetStats()})
}

// Clear handles DELETE /api/v1/knowledge/:collection
func (h *KnowledgeHandler) Clear(c *gin.Context) {
	collection := c.Param("collection")

	if err := h.store.ClearCollection(collection); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear collection: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
