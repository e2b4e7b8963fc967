package api

import (
	"net/http"
	"time"

	resdto "marmite-orders/internal/handler/dto/response"
	"marmite-orders/internal/infra"
	"marmite-orders/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BatchHandler struct {
	batchQueries queries.BatchQueries
}

func NewBatchHandler(batchQueries queries.BatchQueries) *BatchHandler {
	return &BatchHandler{
		batchQueries: batchQueries,
	}
}

// @Summary Next batch
// @Description The earliest upcoming batch with its remaining portions
// @Tags batches
// @Produce json
// @Success 200 {object} resdto.BatchResponse
// @Failure 404 {object} map[string]string
// @Router /batches/next [get]
func (h *BatchHandler) GetNextBatch(c *gin.Context) {
	view, err := h.batchQueries.NextBatch(c.Request.Context(), time.Now())
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No upcoming batch",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, resdto.FromBatchView(view))
}

// @Summary Get batch
// @Description Get a batch by ID
// @Tags batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} resdto.BatchResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid batch ID format",
		})
		return
	}

	view, err := h.batchQueries.GetByID(c.Request.Context(), id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Batch not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, resdto.FromBatchView(view))
}
