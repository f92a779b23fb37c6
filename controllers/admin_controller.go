package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/models"
	"github.com/inkpost/inkpost/utils"
)

// AdminController exposes the moderation surface. Every route behind it is
// gated by middleware.AdminRequired.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates an AdminController.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// ListAllUsers returns every user; the password hash never serializes.
func (a *AdminController) ListAllUsers(ctx *gin.Context) {
	var users []models.User
	if err := a.db.Order("created_at DESC").Find(&users).Error; err != nil {
		utils.Sugar.Errorf("admin list users failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to list users")
		return
	}
	utils.Success(ctx, gin.H{"items": users})
}

// DeleteUserByID hard-deletes the user row only. Unlike self-service account
// deletion this intentionally does not cascade to posts or comments; it is the
// fast moderation path and orphaned content is filtered out of admin listings.
func (a *AdminController) DeleteUserByID(ctx *gin.Context) {
	userID, ok := getUserIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid user id")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "user not found")
			return
		}
		utils.Sugar.Errorf("admin load user failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to load user")
		return
	}

	if err := a.db.Delete(&user).Error; err != nil {
		utils.Sugar.Errorf("admin delete user failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to delete user")
		return
	}

	utils.Success(ctx, gin.H{"message": "user deleted"})
}

// ListAllPosts returns every post with its owner populated and likes/comments
// counts attached. Posts whose owner no longer exists are excluded.
func (a *AdminController) ListAllPosts(ctx *gin.Context) {
	var posts []models.Post
	err := a.db.
		Joins("JOIN users ON users.id = posts.user_id").
		Preload("User").
		Order("posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		utils.Sugar.Errorf("admin list posts failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50073, "failed to list posts")
		return
	}

	if len(posts) > 0 {
		ids := make([]uint, 0, len(posts))
		for _, post := range posts {
			ids = append(ids, post.ID)
		}

		type countRow struct {
			PostID uint
			N      int64
		}
		var likeRows, commentRows []countRow
		if err := a.db.Model(&models.Like{}).Select("post_id, COUNT(*) AS n").
			Where("post_id IN ?", ids).Group("post_id").Scan(&likeRows).Error; err != nil {
			utils.Sugar.Warnf("admin like counts failed: %v", err)
		}
		if err := a.db.Model(&models.Comment{}).Select("post_id, COUNT(*) AS n").
			Where("post_id IN ?", ids).Group("post_id").Scan(&commentRows).Error; err != nil {
			utils.Sugar.Warnf("admin comment counts failed: %v", err)
		}

		likeCounts := make(map[uint]int64, len(likeRows))
		for _, r := range likeRows {
			likeCounts[r.PostID] = r.N
		}
		commentCounts := make(map[uint]int64, len(commentRows))
		for _, r := range commentRows {
			commentCounts[r.PostID] = r.N
		}
		for i := range posts {
			posts[i].LikesCount = likeCounts[posts[i].ID]
			posts[i].CommentsCount = commentCounts[posts[i].ID]
		}
	}

	utils.Success(ctx, gin.H{"items": posts})
}

// DeleteAnyPost hard-deletes a post regardless of ownership, taking its
// comments and likes with it.
func (a *AdminController) DeleteAnyPost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := a.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40421, "post not found")
			return
		}
		utils.Sugar.Errorf("admin load post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50074, "failed to load post")
		return
	}

	if err := a.db.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
		utils.Sugar.Errorf("admin delete comments failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50075, "failed to delete post")
		return
	}
	if err := a.db.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
		utils.Sugar.Errorf("admin delete likes failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50076, "failed to delete post")
		return
	}
	if err := a.db.Delete(&post).Error; err != nil {
		utils.Sugar.Errorf("admin delete post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50077, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(post.ID)))

	utils.Success(ctx, gin.H{"message": "post deleted"})
}
