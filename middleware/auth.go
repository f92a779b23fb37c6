package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/models"
	"github.com/inkpost/inkpost/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextEmailKey stores the authenticated email inside Gin context.
	ContextEmailKey = "email"
	// ContextIsAdminKey stores the token's admin claim inside Gin context.
	ContextIsAdminKey = "is_admin"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextEmailKey, claims.Email)
		ctx.Set(ContextIsAdminKey, claims.IsAdmin)
		ctx.Next()
	}
}

// AdminRequired gates admin-only routes. The admin flag is re-read from the
// user record rather than trusted from token claims so that revoking admin
// status takes effect before the token expires. Must run after AuthRequired.
func AdminRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		value, exists := ctx.Get(ContextUserIDKey)
		if !exists {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "unauthorized")
			ctx.Abort()
			return
		}
		userID, ok := value.(uint)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "unauthorized")
			ctx.Abort()
			return
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40107, "unauthorized")
			ctx.Abort()
			return
		}
		if !user.IsAdmin {
			utils.Error(ctx, http.StatusForbidden, 40310, "access denied: admins only")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
