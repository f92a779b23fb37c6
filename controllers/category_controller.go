package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/models"
	"github.com/inkpost/inkpost/utils"
)

// CategoryController serves the read side of the category directory.
// Entries are created implicitly by post creation, never through this surface.
type CategoryController struct {
	db *gorm.DB
}

// NewCategoryController creates a CategoryController.
func NewCategoryController(db *gorm.DB) *CategoryController {
	return &CategoryController{db: db}
}

// ListCategories returns all categories sorted alphabetically.
func (c *CategoryController) ListCategories(ctx *gin.Context) {
	var categories []models.Category
	if err := c.db.Order("slug ASC").Find(&categories).Error; err != nil {
		utils.Sugar.Errorf("list categories failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to list categories")
		return
	}
	utils.Success(ctx, gin.H{"items": categories})
}
