package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragcache/internal/pkg/response"
	"github.com/xxxsen/ragcache/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

func (h *IngestHandler) Run(c *gin.Context) {
	res, err := h.ingest.Run(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
