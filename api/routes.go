package api

import (
	"artemis/service"
	"context"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every route. Relay ingest streams are closed when
// ctx ends, since Shutdown does not track hijacked connections.
func SetupRoutes(ctx context.Context, router *gin.Engine, p *service.Pipeline) {
	// Enable CORS
	router.Use(CORSMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "ok",
			"devices":     p.Registry().Len(),
			"subscribers": p.Hub().Count(),
		})
	})

	// API routes
	api := router.Group("/api")
	{
		api.GET("/devices", func(c *gin.Context) {
			GetDevices(c, p)
		})

		device := api.Group("/device/:id")
		{
			device.GET("", func(c *gin.Context) {
				GetDevice(c, p)
			})
			device.GET("/history", func(c *gin.Context) {
				GetDeviceHistory(c, p)
			})
		}

		api.POST("/esp32/data", func(c *gin.Context) {
			ReceiveDeviceData(c, p)
		})
	}

	// WebSocket routes
	router.GET("/ws", func(c *gin.Context) {
		HandleWebSocket(p, c)
	})
	router.GET("/ws/ingest", func(c *gin.Context) {
		HandleIngestSocket(ctx, p, c)
	})
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
