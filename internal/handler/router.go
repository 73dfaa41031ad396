package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Ask     *AskHandler
	Cache   *CacheHandler
	Ingest  *IngestHandler
	Metrics http.Handler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/ask", deps.Ask.Ask)

	api.GET("/cache", deps.Cache.List)
	api.GET("/cache/stats", deps.Cache.Stats)
	api.DELETE("/cache/:id", deps.Cache.Delete)
	api.DELETE("/cache", deps.Cache.Clear)

	if deps.Ingest != nil {
		api.POST("/knowledge/ingest", deps.Ingest.Run)
	}
	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}
}
