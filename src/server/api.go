package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

// APIServer serves the websocket push stream and the read-only REST endpoints
type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	Hub    *Hub

	candles    interfaces.ICandleView
	history    interfaces.ICandleHistory
	router     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, hub *Hub, candles interfaces.ICandleView, history interfaces.ICandleHistory, log *logger.Logger) *APIServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:  cfg,
		Logger:  log,
		Hub:     hub,
		candles: candles,
		history: history,
		router:  gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	s.router.Use(gin.Recovery())

	// CORS for local dashboards
	s.router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	s.router.GET("/api/health", s.getHealth)
	s.router.GET("/api/config", s.getConfig)
	s.router.GET("/api/candles", s.getCandles)
	s.router.GET("/api/candles/history", s.getHistory)

	s.router.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for httptest
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start listens until Stop is called
func (s *APIServer) Start() error {
	s.Logger.Info("Starting server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop drains HTTP handlers and disconnects every subscriber
func (s *APIServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.Hub.CloseAll()
	s.Logger.Info("Server stopped")
	return err
}

// Broadcast forwards a candle frame to the hub
func (s *APIServer) Broadcast(message models.MCandleMessage) {
	s.Hub.Broadcast(message)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.Hub.Count(),
		"stats":       s.candles.Stats(),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":       s.Config.Name,
		"provider":   s.Config.Stream.Provider,
		"symbols":    s.Config.Params.Symbols,
		"timeranges": s.Config.Timeranges,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	tr := c.Query("timerange")
	if tr != "" && !slices.Contains(s.Config.Timeranges, tr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("timerange %q is not configured", tr)})
		return
	}

	var result map[string][]models.MCandle
	if symbol == "" {
		result = s.candles.SnapshotAll()
	} else {
		candles, err := s.candles.Snapshot(symbol)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, helpers.ErrUnknownSymbol) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		result = map[string][]models.MCandle{symbol: candles}
	}

	if tr != "" {
		for sym, candles := range result {
			result[sym] = filterTimerange(candles, tr)
		}
	}

	c.JSON(http.StatusOK, result)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHistory(c *gin.Context) {
	symbol := c.Query("symbol")
	tr := c.Query("timerange")
	if symbol == "" || tr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and timerange are required"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timerange": tr,
		"candles":   s.history.Latest(symbol, tr, limit),
	})
}

func filterTimerange(candles []models.MCandle, tr string) []models.MCandle {
	out := make([]models.MCandle, 0, 1)
	for _, candle := range candles {
		if candle.Timerange == tr {
			out = append(out, candle)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// WebSocket Handler
// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s.Hub, conn, s.Config.Server.SendBuffer, s.Logger)
	client.handle = s.Hub.Register(client)

	go client.writePump()
	go client.readPump()
}
