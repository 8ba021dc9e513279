package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/stheno/internal/discovery"
	"github.com/Nixie-Tech-LLC/stheno/internal/engine"
	"github.com/Nixie-Tech-LLC/stheno/internal/httpapi"
)

// router sets up the operational API
func router(eng *engine.Engine, directory *discovery.Directory) *gin.Engine {
	r := gin.Default()

	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
		},
		AllowCredentials: false,
	}))

	api := r.Group("/api/engine")
	httpapi.RegisterEngineRoutes(api, eng, directory)

	return r
}
