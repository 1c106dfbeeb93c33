package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Ingest *IngestHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/ingest", deps.Ingest.Ingest)
	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
