package routes

import (
	"github.com/gin-gonic/gin"

	"ridra/internal/controllers"
	"ridra/internal/middleware"
	"ridra/internal/models"
)

func BusScheduleRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	driver := middleware.RequireRoles(models.RoleDriver)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleDriver)

	schedules := r.Group("/bus-schedules")
	{
		schedules.GET("", controllers.GetAllBusSchedules)
		schedules.GET("/:id", controllers.GetBusSchedule)
		schedules.POST("", staff, controllers.CreateBusSchedule)
		schedules.PUT("/:id", staff, controllers.UpdateBusSchedule)
		schedules.PATCH("/:id/arrival", driver, controllers.UpdateArrivalTime)
		schedules.GET("/:id/interested-users", staff, controllers.GetInterestedUsers)
		schedules.PUT("/interests/:interestId", driver, controllers.UpdateInterestStatus)
		schedules.POST("/start-trip", driver, controllers.StartTrip)
		schedules.POST("/end-trip", driver, controllers.EndTrip)
		schedules.DELETE("/:id", admin, controllers.CancelBusSchedule)
	}
}
