package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragcache/internal/ai"
	"github.com/xxxsen/ragcache/internal/middleware"
	"github.com/xxxsen/ragcache/internal/pipeline"
	"github.com/xxxsen/ragcache/internal/pkg/errcode"
	appErr "github.com/xxxsen/ragcache/internal/pkg/errors"
	"github.com/xxxsen/ragcache/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	var qe *pipeline.QueryError
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuery), errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, pipeline.ErrNoContext):
		response.Error(c, errcode.ErrNoContext, pipeline.ErrNoContext.Error())
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai provider unavailable")
	case errors.As(err, &qe):
		response.Error(c, errcode.ErrQueryFailed, "query processing failed at "+string(qe.Stage))
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
