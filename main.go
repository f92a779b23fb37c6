package main

import (
	"github.com/inkpost/inkpost/config"
	"github.com/inkpost/inkpost/models"
	"github.com/inkpost/inkpost/routes"
	"github.com/inkpost/inkpost/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Comment{}, &models.Like{}, &models.Category{})

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
