package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mnemo/backend/internal/graph"
	"mnemo/backend/pkg/config"
	apperrors "mnemo/backend/pkg/errors"
	"mnemo/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting HTTP API server...")

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify Neo4j connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	metrics := graph.NewMetrics()
	store := graph.New(driver, graph.Options{
		Database:       cfg.Neo4jDatabase,
		Logger:         log,
		Metrics:        metrics,
		MaxChainLength: cfg.MaxChainLength,
	})

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{},
	)))

	registerRoutes(router, store, log)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := store.Close(context.Background()); err != nil {
		log.Error("Failed to close store", zap.Error(err))
	}

	log.Info("Server exited")
}

func registerRoutes(router *gin.Engine, store *graph.Store, log *zap.Logger) {
	api := router.Group("/api")

	// Organizations
	api.POST("/orgs", func(c *gin.Context) {
		var req struct {
			OrgName string `json:"org_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		org, err := store.CreateOrganization(c.Request.Context(), req.OrgName)
		if err != nil {
			respondError(c, log, "Failed to create organization", err)
			return
		}
		c.JSON(http.StatusCreated, org)
	})

	api.GET("/orgs", func(c *gin.Context) {
		orgs, err := store.ListOrganizations(c.Request.Context())
		if err != nil {
			respondError(c, log, "Failed to list organizations", err)
			return
		}
		c.JSON(http.StatusOK, orgs)
	})

	api.GET("/orgs/:org_id", func(c *gin.Context) {
		org, err := store.GetOrganization(c.Request.Context(), c.Param("org_id"))
		if err != nil {
			respondError(c, log, "Failed to fetch organization", err)
			return
		}
		c.JSON(http.StatusOK, org)
	})

	api.PUT("/orgs/:org_id", func(c *gin.Context) {
		var req struct {
			OrgName string `json:"org_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		org, err := store.UpdateOrganization(c.Request.Context(), c.Param("org_id"), req.OrgName)
		if err != nil {
			respondError(c, log, "Failed to update organization", err)
			return
		}
		c.JSON(http.StatusOK, org)
	})

	api.DELETE("/orgs/:org_id", func(c *gin.Context) {
		if err := store.DeleteOrganization(c.Request.Context(), c.Param("org_id")); err != nil {
			respondError(c, log, "Failed to delete organization", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// Users
	api.POST("/orgs/:org_id/users", func(c *gin.Context) {
		var req struct {
			UserName string `json:"user_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := store.CreateUser(c.Request.Context(), c.Param("org_id"), req.UserName)
		if err != nil {
			respondError(c, log, "Failed to create user", err)
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	api.GET("/orgs/:org_id/users", func(c *gin.Context) {
		users, err := store.ListOrgUsers(c.Request.Context(), c.Param("org_id"))
		if err != nil {
			respondError(c, log, "Failed to list users", err)
			return
		}
		c.JSON(http.StatusOK, users)
	})

	api.GET("/orgs/:org_id/users/:user_id", func(c *gin.Context) {
		user, err := store.GetUser(c.Request.Context(), c.Param("org_id"), c.Param("user_id"))
		if err != nil {
			respondError(c, log, "Failed to fetch user", err)
			return
		}
		c.JSON(http.StatusOK, user)
	})

	api.PUT("/orgs/:org_id/users/:user_id", func(c *gin.Context) {
		var req struct {
			UserName string `json:"user_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := store.UpdateUser(c.Request.Context(), c.Param("org_id"), c.Param("user_id"), req.UserName)
		if err != nil {
			respondError(c, log, "Failed to update user", err)
			return
		}
		c.JSON(http.StatusOK, user)
	})

	// ?purge=true removes the user's whole graph, not just the node
	api.DELETE("/orgs/:org_id/users/:user_id", func(c *gin.Context) {
		ctx := c.Request.Context()
		orgID := c.Param("org_id")
		userID := c.Param("user_id")

		var err error
		if c.Query("purge") == "true" {
			err = store.DeleteUserAndAllData(ctx, orgID, userID)
		} else {
			err = store.DeleteUser(ctx, orgID, userID)
		}
		if err != nil {
			respondError(c, log, "Failed to delete user", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// Agents
	api.POST("/orgs/:org_id/agents", func(c *gin.Context) {
		var req struct {
			AgentLabel string  `json:"agent_label" binding:"required"`
			UserID     *string `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		agent, err := store.CreateAgent(c.Request.Context(), c.Param("org_id"), req.AgentLabel, req.UserID)
		if err != nil {
			respondError(c, log, "Failed to create agent", err)
			return
		}
		c.JSON(http.StatusCreated, agent)
	})

	api.GET("/orgs/:org_id/agents", func(c *gin.Context) {
		agents, err := store.ListOrgAgents(c.Request.Context(), c.Param("org_id"))
		if err != nil {
			respondError(c, log, "Failed to list agents", err)
			return
		}
		c.JSON(http.StatusOK, agents)
	})

	api.GET("/orgs/:org_id/agents/:agent_id", func(c *gin.Context) {
		agent, err := store.GetAgent(c.Request.Context(), c.Param("org_id"), c.Param("agent_id"))
		if err != nil {
			respondError(c, log, "Failed to fetch agent", err)
			return
		}
		c.JSON(http.StatusOK, agent)
	})

	api.DELETE("/orgs/:org_id/agents/:agent_id", func(c *gin.Context) {
		if err := store.DeleteAgent(c.Request.Context(), c.Param("org_id"), c.Param("agent_id")); err != nil {
			respondError(c, log, "Failed to delete agent", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// Interactions
	api.POST("/orgs/:org_id/users/:user_id/interactions", func(c *gin.Context) {
		var req struct {
			AgentID       string `json:"agent_id" binding:"required"`
			InteractionID string `json:"interaction_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		interaction, err := store.CreateInteraction(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), req.AgentID, req.InteractionID)
		if err != nil {
			respondError(c, log, "Failed to create interaction", err)
			return
		}
		c.JSON(http.StatusCreated, interaction)
	})

	api.GET("/orgs/:org_id/users/:user_id/interactions", func(c *gin.Context) {
		interactions, err := store.ListUserInteractions(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), queryInt(c, "skip", 0), queryInt(c, "limit", 10))
		if err != nil {
			respondError(c, log, "Failed to list interactions", err)
			return
		}
		c.JSON(http.StatusOK, interactions)
	})

	api.GET("/orgs/:org_id/users/:user_id/interactions/:interaction_id", func(c *gin.Context) {
		interaction, err := store.GetInteraction(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), c.Param("interaction_id"))
		if err != nil {
			respondError(c, log, "Failed to fetch interaction", err)
			return
		}
		c.JSON(http.StatusOK, interaction)
	})

	api.POST("/orgs/:org_id/users/:user_id/interactions/:interaction_id/messages", func(c *gin.Context) {
		var req struct {
			Role        string `json:"role" binding:"required"`
			Content     string `json:"content" binding:"required"`
			MsgPosition int64  `json:"msg_position"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := store.AddMessageToInteraction(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), c.Param("interaction_id"),
			graph.MessageBlock{Role: req.Role, Content: req.Content, MsgPosition: req.MsgPosition})
		if err != nil {
			respondError(c, log, "Failed to append message", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "appended"})
	})

	api.DELETE("/orgs/:org_id/users/:user_id/interactions/:interaction_id", func(c *gin.Context) {
		err := store.DeleteInteraction(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), c.Param("interaction_id"))
		if err != nil {
			respondError(c, log, "Failed to delete interaction", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// Memories
	api.GET("/orgs/:org_id/users/:user_id/memories", func(c *gin.Context) {
		var agentID *string
		if v := c.Query("agent_id"); v != "" {
			agentID = &v
		}
		memories, err := store.ListUserMemories(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), agentID,
			queryInt(c, "skip", 0), queryInt(c, "limit", 10))
		if err != nil {
			respondError(c, log, "Failed to list memories", err)
			return
		}
		c.JSON(http.StatusOK, memories)
	})

	api.GET("/orgs/:org_id/users/:user_id/memories/:memory_id", func(c *gin.Context) {
		memory, err := store.GetMemory(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), c.Param("memory_id"))
		if err != nil {
			respondError(c, log, "Failed to fetch memory", err)
			return
		}
		c.JSON(http.StatusOK, memory)
	})

	api.DELETE("/orgs/:org_id/users/:user_id/memories/:memory_id", func(c *gin.Context) {
		err := store.DeleteMemory(c.Request.Context(),
			c.Param("org_id"), c.Param("user_id"), c.Param("memory_id"))
		if err != nil {
			respondError(c, log, "Failed to delete memory", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})
}

// respondError maps store error kinds to HTTP status codes
func respondError(c *gin.Context, log *zap.Logger, message string, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidArgument:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.KindDuplicateKey:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperrors.KindTimeout:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "operation timed out"})
	case apperrors.KindStoreUnavailable:
		log.Error(message, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		log.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	if value := c.Query(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
