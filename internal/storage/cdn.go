package storage

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// NewCDNHandler builds the public-facing content read-through surface
// (spec.md §4.5 "Download"): a thin gin router sitting in front of
// Manager.Download so public-tier content can be served over plain HTTP
// without a caller needing to speak the backend-selection protocol. Private
// content still requires a decryptKeyId query parameter.
func NewCDNHandler(m *Manager) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/cdn/:cid", func(c *gin.Context) {
		cid := c.Param("cid")
		opts := DownloadOptions{
			Region:       c.Query("region"),
			DecryptKeyID: c.Query("decryptKeyId"),
		}
		result, err := m.Download(c.Request.Context(), cid, opts)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.Header("X-Backend-Used", result.BackendUsed)
		c.Header("X-Cache-Hit", strconv.FormatBool(result.FromCache))
		c.Data(http.StatusOK, "application/octet-stream", result.Content)
	})
	return r
}
