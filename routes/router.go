package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/config"
	"github.com/inkpost/inkpost/controllers"
	"github.com/inkpost/inkpost/middleware"
	"github.com/inkpost/inkpost/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	userController := controllers.NewUserController(db)
	postController := controllers.NewPostController(db)
	categoryController := controllers.NewCategoryController(db)
	adminController := controllers.NewAdminController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)

	// Public reads
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)
	api.GET("/categories", categoryController.ListCategories)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.GET("/users/me", userController.Me)
	protected.PUT("/users/me", userController.UpdateProfile)
	protected.DELETE("/users/me", userController.DeleteAccount)
	protected.POST("/upload", userController.UploadAvatar)
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/like", postController.ToggleLike)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.DELETE("/posts/:id/comments/:commentId", postController.DeleteComment)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired(db))
	admin.GET("/users", adminController.ListAllUsers)
	admin.DELETE("/users/:id", adminController.DeleteUserByID)
	admin.GET("/posts", adminController.ListAllPosts)
	admin.DELETE("/posts/:id", adminController.DeleteAnyPost)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
