package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/api/handler"
	"github.com/qs3c/creditflow_server/internal/api/middleware"
	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
)

type Router struct {
	ledgerHandler     *handler.LedgerHandler
	generationHandler *handler.GenerationHandler
	contentHandler    *handler.ContentHandler
	projectHandler    *handler.ProjectHandler
	websocketHandler  *handler.WebSocketHandler
	metrics           *metrics.Collector
	logger            *zap.Logger
	cfg               *config.Config
}

func NewRouter(
	ledgerHandler *handler.LedgerHandler,
	generationHandler *handler.GenerationHandler,
	contentHandler *handler.ContentHandler,
	projectHandler *handler.ProjectHandler,
	websocketHandler *handler.WebSocketHandler,
	collector *metrics.Collector,
	logger *zap.Logger,
	cfg *config.Config,
) *Router {
	return &Router{
		ledgerHandler:     ledgerHandler,
		generationHandler: generationHandler,
		contentHandler:    contentHandler,
		projectHandler:    projectHandler,
		websocketHandler:  websocketHandler,
		metrics:           collector,
		logger:            logger,
		cfg:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(r.logger))
	engine.Use(middleware.Metrics(r.metrics))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	api := engine.Group("/api/v1")
	{
		// WebSocket，token 通过查询参数传递
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 套餐
		api.GET("/billing/plans", r.ledgerHandler.Plans)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 积分
			authenticated.GET("/user/credits", r.ledgerHandler.GetCredits)
			authenticated.POST("/credits/reset", r.ledgerHandler.ResetCredits)

			billing := authenticated.Group("/billing")
			{
				billing.POST("/upgrade", r.ledgerHandler.Upgrade)
				billing.GET("/transactions", r.ledgerHandler.Transactions)
			}

			// 生成
			authenticated.POST("/generate", r.generationHandler.Generate)

			// 内容
			contents := authenticated.Group("/contents")
			{
				contents.GET("", r.contentHandler.List)
				contents.POST("", r.contentHandler.Save)
				contents.GET("/:id", r.contentHandler.Get)
				contents.DELETE("/:id", r.contentHandler.Delete)
				contents.PUT("/:id/favorite", r.contentHandler.SetFavorite)
				contents.PUT("/:id/project", r.contentHandler.AssignProject)
			}

			// 项目
			projects := authenticated.Group("/projects")
			{
				projects.POST("", r.projectHandler.Create)
				projects.GET("", r.projectHandler.List)
				projects.GET("/:id", r.projectHandler.Get)
				projects.PUT("/:id", r.projectHandler.Update)
				projects.DELETE("/:id", r.projectHandler.Delete)
			}
		}
	}

	return engine
}
