package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/config"
	"github.com/inkpost/inkpost/models"
	"github.com/inkpost/inkpost/utils"
)

// AuthController handles registration, login and logout.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len([]rune(req.Username)) < 3 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be at least 3 characters")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	err := a.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "email already registered")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Sugar.Errorf("register lookup failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "server error")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Sugar.Errorf("password hash failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "server error")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      email == strings.ToLower(config.Get().BootstrapAdminEmail) && config.Get().BootstrapAdminEmail != "",
	}

	if err := a.db.Create(&user).Error; err != nil {
		// The unique index on email backstops a concurrent duplicate registration.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusBadRequest, 40003, "email already registered")
			return
		}
		utils.Sugar.Errorf("create user failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50005, "server error")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		utils.Sugar.Errorf("token generation failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50003, "server error")
		return
	}

	utils.Success(ctx, gin.H{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"is_admin": user.IsAdmin,
	})
}

// Login verifies user credentials and issues a JWT. Unknown email and wrong
// password answer with the same generic message to avoid account enumeration.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid credentials")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid credentials")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		utils.Sugar.Errorf("token generation failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50004, "server error")
		return
	}

	utils.Success(ctx, gin.H{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"is_admin": user.IsAdmin,
	})
}

// Logout invalidates the presented token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(utils.TokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)

	utils.Success(ctx, gin.H{"message": "logged out"})
}
