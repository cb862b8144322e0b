package routes

import (
	"io"
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
)

// SetupRouter builds the engine. accessLog, when non-nil, receives one
// line per request.
func SetupRouter(accessLog io.Writer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if accessLog != nil {
		r.Use(ginlog.SetLogger(
			ginlog.WithWriter(accessLog),
			ginlog.WithUTC(true),
			ginlog.WithSkipPath([]string{"/health"}),
		))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	WebSocketRoutes(r)

	api := r.Group("/api")
	AuthRoutes(api)
	UserRoutes(api)
	DriverRoutes(api)
	BusRoutes(api)
	RouteRoutes(api)
	BusScheduleRoutes(api)
	InterestRoutes(api)

	return r
}
