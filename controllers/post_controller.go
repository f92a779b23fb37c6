package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkpost/inkpost/models"
	"github.com/inkpost/inkpost/utils"
)

// PostController manages post CRUD plus the like and comment engagement operations.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title    string   `json:"title" binding:"required,min=1"`
		Content  string   `json:"content" binding:"required"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	if len([]rune(title)) > models.MaxTitleLength {
		utils.Error(ctx, http.StatusBadRequest, 40022, "title exceeds 150 characters")
		return
	}

	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, "content cannot be empty")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	if err := p.ensureCategory(category); err != nil {
		utils.Sugar.Errorf("category ensure failed for %q: %v", category, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	post := models.Post{
		UserID:   userID,
		Title:    title,
		Content:  content,
		Category: category,
		Tags:     utils.NormalizeTags(req.Tags),
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Sugar.Errorf("create post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to create post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	utils.Success(ctx, gin.H{"post": post})
}

// ensureCategory inserts the category on first use. The unique slug index plus
// insert-ignore resolves the check-then-insert race at the storage layer.
func (p *PostController) ensureCategory(name string) error {
	cat := models.Category{
		Name: strings.TrimSpace(name),
		Slug: models.CategorySlug(name),
	}
	if cat.Slug == "" {
		return nil
	}
	return p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&cat).Error
}

// ListPosts returns paginated posts including author information and counts.
// Title matching is a case-insensitive substring; category is an exact match.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))
	category := strings.TrimSpace(ctx.Query("category"))

	// Cache only search-less lists to avoid cache key explosion.
	cacheKey := fmt.Sprintf("cache:posts:list:cat=%s:page=%d:size=%d", category, page, pageSize)
	if search == "" {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var posts []models.Post
	var total int64

	query := p.db.Preload("User").Order("created_at DESC")
	if search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if category != "" && category != "All" {
		query = query.Where("category = ?", category)
	}
	if err := query.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Sugar.Errorf("count posts failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to count posts")
		return
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Sugar.Errorf("list posts failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to list posts")
		return
	}

	if err := p.attachCounts(posts); err != nil {
		utils.Sugar.Warnf("attach counts failed: %v", err)
	}

	payload := gin.H{
		"items": posts,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	if search == "" {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.Success(ctx, payload)
}

// attachCounts fills LikesCount and CommentsCount for a page of posts.
func (p *PostController) attachCounts(posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}

	type countRow struct {
		PostID uint
		N      int64
	}
	var likeRows, commentRows []countRow
	if err := p.db.Model(&models.Like{}).Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).Group("post_id").Scan(&likeRows).Error; err != nil {
		return err
	}
	if err := p.db.Model(&models.Comment{}).Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).Group("post_id").Scan(&commentRows).Error; err != nil {
		return err
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
	return nil
}

// GetPost returns a single post with comments, resolved comment authors and the like set.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes("cache:post:detail:" + postID); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var post models.Post
	if err := p.db.Preload("User").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Sugar.Errorf("load post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
		return
	}

	var comments []models.Comment
	if err := p.db.Preload("User").Where("post_id = ?", post.ID).
		Order("created_at ASC").Find(&comments).Error; err != nil {
		utils.Sugar.Warnf("load comments failed for post %d: %v", post.ID, err)
	} else {
		post.Comments = comments
	}

	var likeUserIDs []uint
	if err := p.db.Model(&models.Like{}).Where("post_id = ?", post.ID).
		Pluck("user_id", &likeUserIDs).Error; err != nil {
		utils.Sugar.Warnf("load likes failed for post %d: %v", post.ID, err)
	}
	post.LikeUserIDs = likeUserIDs
	post.LikesCount = int64(len(likeUserIDs))
	post.CommentsCount = int64(len(post.Comments))

	payload := gin.H{"post": post}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:post:detail:"+postID, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// UpdatePost allows the author to update title/content/category/tags.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req struct {
		Title    string   `json:"title" binding:"required,min=1"`
		Content  string   `json:"content" binding:"required"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "title cannot be empty")
		return
	}
	if len([]rune(title)) > models.MaxTitleLength {
		utils.Error(ctx, http.StatusBadRequest, 40026, "title exceeds 150 characters")
		return
	}
	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40027, "content cannot be empty")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Sugar.Errorf("load post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only update your own posts")
		return
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	if err := p.ensureCategory(category); err != nil {
		utils.Sugar.Errorf("category ensure failed for %q: %v", category, err)
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update post")
		return
	}

	post.Title = title
	post.Content = content
	post.Category = category
	post.Tags = utils.NormalizeTags(req.Tags)
	if err := p.db.Save(&post).Error; err != nil {
		utils.Sugar.Errorf("update post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to update post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + postID)

	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost allows the author to delete their post together with its comments and likes.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.Sugar.Errorf("load post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}

	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	if err := p.deletePostCascade(post.ID); err != nil {
		utils.Sugar.Errorf("delete post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + postID)

	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// deletePostCascade removes a post's comments and likes, then the post row.
// Each statement is idempotent; re-running after a partial failure is safe.
func (p *PostController) deletePostCascade(postID uint) error {
	if err := p.db.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := p.db.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
		return err
	}
	return p.db.Delete(&models.Post{}, postID).Error
}

// ToggleLike flips the caller's like on a post: present removes, absent adds.
// Calling it twice always restores the original state.
func (p *PostController) ToggleLike(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Sugar.Errorf("load post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	res := p.db.Where("post_id = ? AND user_id = ?", post.ID, userID).Delete(&models.Like{})
	if res.Error != nil {
		utils.Sugar.Errorf("unlike failed: %v", res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to update like")
		return
	}

	liked := false
	if res.RowsAffected == 0 {
		like := models.Like{PostID: post.ID, UserID: userID}
		// The composite unique index absorbs a concurrent duplicate insert.
		if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
			utils.Sugar.Errorf("like failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to update like")
			return
		}
		liked = true
	}

	var count int64
	if err := p.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&count).Error; err != nil {
		utils.Sugar.Warnf("like count failed for post %d: %v", post.ID, err)
	}

	// List responses embed likes_count, drop them too.
	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + postID)

	utils.Success(ctx, gin.H{"liked": liked, "likes_count": count})
}

// CreateComment appends a comment to a post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid request payload")
		return
	}

	text := utils.Sanitize(strings.TrimSpace(req.Text))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40029, "comment text cannot be empty")
		return
	}
	if len([]rune(text)) > models.MaxCommentLength {
		utils.Error(ctx, http.StatusBadRequest, 40036, "comment exceeds 500 characters")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40405, "post not found")
			return
		}
		utils.Sugar.Errorf("load post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}

	comment := models.Comment{
		PostID: post.ID,
		UserID: userID,
		Text:   text,
	}

	if err := p.db.Create(&comment).Error; err != nil {
		utils.Sugar.Errorf("create comment failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to create comment")
		return
	}

	if err := p.db.Preload("User").First(&comment, comment.ID).Error; err != nil {
		utils.Sugar.Errorf("reload comment failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50037, "failed to load comment")
		return
	}

	// List responses embed comments_count, drop them too.
	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(post.ID)))

	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment removes a comment from a post. Only the comment's author or
// the post's owner may delete it; deleting an already-gone comment is a no-op.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40406, "post not found")
			return
		}
		utils.Sugar.Errorf("load post failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50038, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}

	commentID := strings.TrimSpace(ctx.Param("commentId"))
	var comment models.Comment
	err := p.db.Where("post_id = ?", post.ID).First(&comment, commentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Already gone; keep the operation idempotent.
			utils.Success(ctx, gin.H{"message": "comment deleted"})
			return
		}
		utils.Sugar.Errorf("load comment failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50039, "failed to load comment")
		return
	}

	if comment.UserID != userID && post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40303, "you can only delete your own comments")
		return
	}

	if err := p.db.Delete(&comment).Error; err != nil {
		utils.Sugar.Errorf("delete comment failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to delete comment")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + postID)

	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
