package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragcache/internal/pkg/response"
	"github.com/xxxsen/ragcache/internal/service"
)

type CacheHandler struct {
	admin *service.CacheAdminService
}

func NewCacheHandler(admin *service.CacheAdminService) *CacheHandler {
	return &CacheHandler{admin: admin}
}

func (h *CacheHandler) List(c *gin.Context) {
	ids, err := h.admin.ListCacheEntries(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ids": ids, "total": len(ids)})
}

func (h *CacheHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *CacheHandler) Delete(c *gin.Context) {
	if err := h.admin.ClearCacheEntry(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *CacheHandler) Clear(c *gin.Context) {
	n, err := h.admin.ClearAllCache(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}
