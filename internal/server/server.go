package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketchat/config"
	"marketchat/internal/auth"
	"marketchat/internal/handler"
	"marketchat/internal/middleware"
	"marketchat/internal/transport/httpdto"
	"marketchat/pkg/database"
	"marketchat/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

type Handlers struct {
	Chat     *handler.ChatHandler
	Presence *handler.PresenceHandler
	Upload   *handler.UploadHandler
	WS       *WebSocketHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, verifier auth.TokenVerifier) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/ws", handlers.WS.Handle)

	chat := s.engine.Group("/v1/chat", middleware.AuthMiddleware(verifier))
	{
		chat.POST("/conversations", handlers.Chat.StartConversation)
		chat.GET("/conversations/user/:userId", handlers.Chat.GetUserConversations)
		chat.GET("/conversations/:id", handlers.Chat.GetConversation)
		chat.POST("/conversations/:id/archive", handlers.Chat.ArchiveConversation)
		chat.POST("/conversations/:id/block", handlers.Chat.BlockConversation)
		chat.GET("/conversations/:id/messages", handlers.Chat.GetMessages)
		chat.POST("/conversations/:id/read", handlers.Chat.MarkAsRead)
		chat.POST("/messages", handlers.Chat.SendMessage)
		chat.PATCH("/messages/:id", handlers.Chat.EditMessage)
		chat.DELETE("/messages/:id", handlers.Chat.DeleteMessage)
		chat.GET("/unread/:userId", handlers.Chat.GetUnreadCount)
		chat.GET("/presence/online-count", handlers.Presence.OnlineCount)
		chat.GET("/presence/:userId", handlers.Presence.IsOnline)
		chat.POST("/attachments/presign", handlers.Upload.Presign)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
