package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/civic_issues/docs"
	"github.com/civic_issues/internal/handlers"
	"github.com/civic_issues/internal/middleware"
	"github.com/civic_issues/internal/services"
)

// Dependencies are the collaborators the routes are built from.
type Dependencies struct {
	DB          *gorm.DB
	Service     services.IssueService
	Logger      *zap.Logger
	CORSOrigins []string
	// CreateLimiter guards POST /issues when set.
	CreateLimiter gin.HandlerFunc
}

// NewRouter builds the engine with the global middleware and all routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(deps.CORSOrigins))

	SetupRoutes(router, deps)
	return router
}

// SetupRoutes registers all routes
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", handlers.NewHealthHandler(deps.DB).Health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	SetupIssueRoutes(router.Group("/issues"), handlers.NewIssueHandler(deps.Service), deps.CreateLimiter)
}
