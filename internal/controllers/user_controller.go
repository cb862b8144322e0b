package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridra/internal/config"
	"ridra/internal/models"
)

type createUserInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"required"`
}

// updateUserInput defines the fields an admin can change on a user.
type updateUserInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// ListUsers pages through users, optionally filtered by ?role.
func ListUsers(c *gin.Context) {
	listUsers(c, strings.ToLower(strings.TrimSpace(c.Query("role"))))
}

// ListDrivers pages through users with the driver role.
func ListDrivers(c *gin.Context) {
	listUsers(c, models.RoleDriver)
}

func listUsers(c *gin.Context, role string) {
	page, limit := parsePagination(c)

	q := config.DB.Model(&models.User{})
	if role != "" {
		if !models.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		q = q.Where("role = ?", role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		dbError(c, err, "")
		return
	}

	users := []models.User{}
	if err := q.Order("id asc").Offset(offset(page, limit)).Limit(limit).Find(&users).Error; err != nil {
		dbError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      users,
		"pagination": newPagination(page, limit, total),
	})
}

func GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var user models.User
	if err := config.DB.First(&user, id).Error; err != nil {
		dbError(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateUser lets an admin create an account with any role.
func CreateUser(c *gin.Context) {
	var input createUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if !models.ValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	user, status, err := createUser(input.Name, input.Email, input.Password, input.Phone, role)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": user})
}

func UpdateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var user models.User
	if err := config.DB.First(&user, id).Error; err != nil {
		dbError(c, err, "User not found")
		return
	}

	var input updateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		user.Email = normalizeEmail(*input.Email)
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*input.Role))
		if !models.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		user.Role = role
	}
	if input.Password != nil {
		hashed, err := hashPassword(*input.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password."})
			return
		}
		user.Password = hashed
	}

	if err := config.DB.Save(&user).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
			return
		}
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

// SetUserStatus activates or deactivates an account.
func SetUserStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isActive is required"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, id).Error; err != nil {
		dbError(c, err, "User not found")
		return
	}
	if err := config.DB.Model(&user).Update("is_active", *input.IsActive).Error; err != nil {
		dbError(c, err, "")
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "is_active": *input.IsActive}).Info("User status changed.")
	c.JSON(http.StatusOK, gin.H{"message": "User status updated", "user": user})
}
