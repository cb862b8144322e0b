package routes

import (
	"github.com/gin-gonic/gin"

	"ridra/internal/controllers"
	"ridra/internal/middleware"
	"ridra/internal/models"
)

func UserRoutes(r *gin.RouterGroup) {
	r.GET("/users/me", middleware.RequireAuth(), controllers.GetMe)

	users := r.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", controllers.ListUsers)
		users.GET("/drivers", controllers.ListDrivers)
		users.GET("/:id", controllers.GetUser)
		users.POST("", controllers.CreateUser)
		users.PUT("/:id", controllers.UpdateUser)
		users.PATCH("/:id/status", controllers.SetUserStatus)
	}
}
