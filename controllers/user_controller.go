package controllers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/config"
	"github.com/inkpost/inkpost/models"
	"github.com/inkpost/inkpost/utils"
)

// UserController handles the authenticated user's own profile lifecycle.
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

// Me returns the authenticated user's profile without the password hash.
func (u *UserController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := u.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	utils.Success(ctx, user)
}

// profileUpdateRequest uses pointer fields so that "absent" and "set to empty"
// are distinguishable. Email is deliberately not updatable through this path.
type profileUpdateRequest struct {
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
	Avatar   *string `json:"avatar"`
	Password *string `json:"password"`
}

// UpdateProfile applies a partial update of username/bio/avatar and rehashes
// the password when a new one is supplied.
func (u *UserController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req profileUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	var user models.User
	if err := u.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if len([]rune(name)) < 3 {
			utils.Error(ctx, http.StatusBadRequest, 40031, "username must be at least 3 characters")
			return
		}
		user.Username = name
	}
	if req.Bio != nil {
		user.Bio = utils.Sanitize(strings.TrimSpace(*req.Bio))
	}
	if req.Avatar != nil {
		user.AvatarURL = strings.TrimSpace(*req.Avatar)
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		if len(*req.Password) < 6 {
			utils.Error(ctx, http.StatusBadRequest, 40032, "password must be at least 6 characters")
			return
		}
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			utils.Sugar.Errorf("password hash failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50030, "server error")
			return
		}
		user.PasswordHash = hash
	}

	if err := u.db.Save(&user).Error; err != nil {
		utils.Sugar.Errorf("profile update failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}

	// Cached post responses embed the author; a rename invalidates them.
	if req.Username != nil {
		utils.InvalidateByPrefix("cache:posts:list:")
		utils.InvalidateByPrefix("cache:post:detail:")
	}

	utils.Success(ctx, user)
}

// DeleteAccount removes the account with full cascade: the user's posts (and
// their comments/likes), the user's comments and likes on other posts, then
// the user row. Each step is independently idempotent so a crash between
// steps leaves a re-runnable state.
func (u *UserController) DeleteAccount(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var postIDs []uint
	if err := u.db.Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &postIDs).Error; err != nil {
		utils.Sugar.Errorf("account delete: list posts failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to delete account")
		return
	}

	if len(postIDs) > 0 {
		if err := u.db.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
			utils.Sugar.Errorf("account delete: comments of own posts failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to delete account")
			return
		}
		if err := u.db.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
			utils.Sugar.Errorf("account delete: likes of own posts failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to delete account")
			return
		}
		if err := u.db.Where("user_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
			utils.Sugar.Errorf("account delete: posts failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to delete account")
			return
		}
	}

	// Strip the user's comments and likes from everyone else's posts.
	if err := u.db.Where("user_id = ?", userID).Delete(&models.Comment{}).Error; err != nil {
		utils.Sugar.Errorf("account delete: authored comments failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to delete account")
		return
	}
	if err := u.db.Where("user_id = ?", userID).Delete(&models.Like{}).Error; err != nil {
		utils.Sugar.Errorf("account delete: likes failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to delete account")
		return
	}

	if err := u.db.Delete(&models.User{}, userID).Error; err != nil {
		utils.Sugar.Errorf("account delete: user row failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to delete account")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.InvalidateByPrefix("cache:post:detail:")

	utils.Success(ctx, gin.H{"message": "account and related content deleted"})
}

// UploadAvatar stores an avatar image under the upload directory and returns its URL.
func (u *UserController) UploadAvatar(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "no file uploaded")
		return
	}

	cfg := config.Get()
	maxSize := int64(cfg.UploadMaxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40034, fmt.Sprintf("file size exceeds %dMB", cfg.UploadMaxSizeMB))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		utils.Error(ctx, http.StatusBadRequest, 40035, "unsupported image type")
		return
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		utils.Sugar.Errorf("upload dir create failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to store file")
		return
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(cfg.UploadDir, name)
	if err := ctx.SaveUploadedFile(file, dst); err != nil {
		utils.Sugar.Errorf("upload save failed for user %d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to store file")
		return
	}

	utils.Success(ctx, gin.H{"url": "/" + filepath.ToSlash(filepath.Join(cfg.UploadDir, name))})
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func getUserIDParam(ctx *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(ctx.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
