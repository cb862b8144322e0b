package routes

import (
	"github.com/gin-gonic/gin"

	"ridra/internal/controllers"
)

// WebSocketRoutes mounts the socket endpoint. It authenticates through the
// token query parameter since browsers cannot set headers on upgrades.
func WebSocketRoutes(r *gin.Engine) {
	r.GET("/ws", controllers.HandleWebSocket)
}
