package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"stock-search-service/src/logger"
	"stock-search-service/src/models"
	"stock-search-service/src/search"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	Search *search.Service
	engine *gin.Engine

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MStatusSnapshot // Strongly typed and Buffered Queue
	register   chan *Client
	unregister chan *Client

	// Last broadcast snapshot, served to newly connected clients
	latestState *models.MStatusSnapshot
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, svc *search.Service, logger *logger.Logger) *FastAPIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:  cfg,
		Logger:  logger,
		Search:  svc,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		broadcast:  make(chan *models.MStatusSnapshot, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/search", s.getSearch)
	s.engine.GET("/api/search/name", s.getSearchByName)
	s.engine.GET("/api/suggestions", s.getSuggestions)
	s.engine.GET("/api/stats", s.getStats)
	s.engine.GET("/api/health", s.getHealth)

	// Admin endpoints
	s.engine.POST("/api/admin/cleanup", s.postCleanup)
	s.engine.POST("/api/admin/breaker/reset", s.postBreakerReset)
	s.engine.POST("/api/admin/cache/clear", s.postCacheClear)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getSearch(c *gin.Context) {
	query := c.Query("query")

	stock, err := s.Search.Search(c.Request.Context(), query)
	if err != nil {
		s.writeError(c, err, 400)
		return
	}

	c.JSON(200, gin.H{
		"stock":  stock,
		"source": stock.DataSource,
		"cached": stock.DataSource != models.SourceYahoo,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getSearchByName(c *gin.Context) {
	query := c.Query("query")
	limit := intQuery(c, "limit", 10)

	matches, err := s.Search.SearchByName(c.Request.Context(), query, limit)
	if err != nil {
		// A too-short query is a semantic problem, not a malformed request
		s.writeError(c, err, 422)
		return
	}

	c.JSON(200, gin.H{
		"query":   query,
		"count":   len(matches),
		"results": matches,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getSuggestions(c *gin.Context) {
	prefix := c.Query("query")
	limit := intQuery(c, "limit", 10)

	records, err := s.Search.Suggestions(c.Request.Context(), prefix, limit)
	if err != nil {
		s.writeError(c, err, 400)
		return
	}

	c.JSON(200, gin.H{
		"prefix":      prefix,
		"suggestions": records,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getStats(c *gin.Context) {
	snapshot := s.Search.Snapshot()

	s.stateMutex.RLock()
	connections := len(s.clients)
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"snapshot":    snapshot,
		"connections": connections,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	snapshot := s.Search.Snapshot()

	s.stateMutex.RLock()
	connections := len(s.clients)
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":          "ok",
		"connections":     connections,
		"circuit_breaker": snapshot.Breaker.State,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postCleanup(c *gin.Context) {
	removed, err := s.Search.Cleanup(c.Request.Context())
	if err != nil {
		s.writeError(c, err, 400)
		return
	}

	c.JSON(200, gin.H{"removed": removed})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postBreakerReset(c *gin.Context) {
	s.Search.ResetBreaker()
	c.JSON(200, gin.H{"status": "reset"})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postCacheClear(c *gin.Context) {
	s.Search.ClearMemoryCache()
	c.JSON(200, gin.H{"status": "cleared"})
}

// -----------------------------------------------------------------------------

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}
