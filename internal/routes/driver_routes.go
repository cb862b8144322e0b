package routes

import (
	"github.com/gin-gonic/gin"

	"ridra/internal/controllers"
	"ridra/internal/middleware"
	"ridra/internal/models"
)

func DriverRoutes(r *gin.RouterGroup) {
	driver := r.Group("/drivers/me")
	driver.Use(middleware.RequireRoles(models.RoleDriver))
	{
		driver.GET("/bus", controllers.GetMyBus)
		driver.GET("/schedules", controllers.GetMySchedules)
	}
}
