package routes

import (
	"github.com/gin-gonic/gin"

	"ridra/internal/controllers"
	"ridra/internal/middleware"
	"ridra/internal/models"
)

func InterestRoutes(r *gin.RouterGroup) {
	interests := r.Group("/interests")
	interests.Use(middleware.RequireRoles(models.RolePassenger))
	{
		interests.POST("", controllers.CreateInterest)
		interests.GET("/mine", controllers.ListMyInterests)
		interests.DELETE("/:id", controllers.WithdrawInterest)
	}
}
