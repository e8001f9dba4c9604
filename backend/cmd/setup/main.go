package main

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"mnemo/backend/internal/graph"
	"mnemo/backend/pkg/config"
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

	log.Info("Preparing graph schema...")

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
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	store := graph.New(driver, graph.Options{
		Database:       cfg.Neo4jDatabase,
		Logger:         log,
		Metrics:        graph.NewMetrics(),
		MaxChainLength: cfg.MaxChainLength,
	})

	if err := store.Setup(ctx); err != nil {
		log.Fatal("Failed to apply schema constraints", zap.Error(err))
	}

	log.Info("Schema ready", zap.String("database", cfg.Neo4jDatabase))
}
