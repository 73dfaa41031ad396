package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragcache/internal/pipeline"
	"github.com/xxxsen/ragcache/internal/pkg/errcode"
	"github.com/xxxsen/ragcache/internal/pkg/response"
)

type Asker interface {
	Ask(ctx context.Context, query string) (*pipeline.Result, error)
}

type AskHandler struct {
	asker Asker
}

func NewAskHandler(asker Asker) *AskHandler {
	return &AskHandler{asker: asker}
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer     string                `json:"answer"`
	Documents  [][]string            `json:"documents"`
	Metadatas  [][]map[string]string `json:"metadatas"`
	References []string              `json:"references"`
	Cached     bool                  `json:"cached"`
	CacheWrite string                `json:"cache_write,omitempty"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, errcode.ErrInvalid, "query required")
		return
	}
	res, err := h.asker.Ask(c.Request.Context(), req.Query)
	if err != nil {
		handleError(c, err)
		return
	}
	out := askResponse{
		Answer:     res.Answer.Answer,
		Documents:  res.Answer.Documents,
		Metadatas:  res.Answer.Metadatas,
		References: res.Answer.References,
		Cached:     res.Cached,
	}
	if !res.Cached {
		out.CacheWrite = res.Submit.String()
	}
	response.Success(c, out)
}
