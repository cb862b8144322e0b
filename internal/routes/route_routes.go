package routes

import (
	"github.com/gin-gonic/gin"

	"ridra/internal/controllers"
	"ridra/internal/middleware"
	"ridra/internal/models"
)

// RouteRoutes mounts bus routes and their pickup points.
func RouteRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRoles(models.RoleAdmin)

	routes := r.Group("/routes")
	{
		routes.GET("", controllers.ListRoutes)
		routes.GET("/:id", controllers.GetRoute)
		routes.GET("/:id/pickup-points", controllers.ListRoutePickupPoints)
		routes.POST("", admin, controllers.CreateRoute)
		routes.PUT("/:id", admin, controllers.UpdateRoute)
		routes.DELETE("/:id", admin, controllers.DeleteRoute)
	}

	points := r.Group("/pickup-points")
	points.Use(admin)
	{
		points.POST("", controllers.CreatePickupPoint)
		points.PUT("/:id", controllers.UpdatePickupPoint)
		points.DELETE("/:id", controllers.DeletePickupPoint)
	}
}
