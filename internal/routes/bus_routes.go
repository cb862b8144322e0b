package routes

import (
	"github.com/gin-gonic/gin"

	"ridra/internal/controllers"
	"ridra/internal/middleware"
	"ridra/internal/models"
)

func BusRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	driver := middleware.RequireRoles(models.RoleDriver)

	buses := r.Group("/buses")
	{
		buses.GET("", controllers.ListBuses)
		buses.GET("/:id", controllers.GetBus)
		buses.GET("/:id/locations", controllers.ListBusLocations)
		buses.POST("", admin, controllers.CreateBus)
		buses.PUT("/:id", admin, controllers.UpdateBus)
		buses.DELETE("/:id", admin, controllers.DeleteBus)
		buses.PATCH("/:id/online", driver, controllers.SetBusOnline)
		buses.PUT("/:id/location", driver, controllers.UpdateBusLocation)
	}
}
