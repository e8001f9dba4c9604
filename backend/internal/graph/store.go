package graph

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "mnemo/backend/pkg/errors"
)

const defaultMaxChainLength = 10000

// Store handles all graph database operations for the memory persistence
// core. Every public operation opens one session against the configured
// database and runs one managed transaction.
type Store struct {
	driver         neo4j.DriverWithContext
	database       string
	logger         *zap.Logger
	metrics        *Metrics
	vectorIndex    VectorIndex
	maxChainLength int
	validate       *validator.Validate
}

// Options configures a Store. Logger, Metrics and VectorIndex are
// optional collaborators.
type Options struct {
	Database       string
	Logger         *zap.Logger
	Metrics        *Metrics
	VectorIndex    VectorIndex
	MaxChainLength int
}

// New creates a new graph store
func New(driver neo4j.DriverWithContext, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	database := opts.Database
	if database == "" {
		database = "neo4j"
	}
	maxChainLength := opts.MaxChainLength
	if maxChainLength <= 0 {
		maxChainLength = defaultMaxChainLength
	}

	return &Store{
		driver:         driver,
		database:       database,
		logger:         log,
		metrics:        opts.Metrics,
		vectorIndex:    opts.VectorIndex,
		maxChainLength: maxChainLength,
		validate:       validator.New(),
	}
}

// Close closes the underlying driver connection
func (s *Store) Close(ctx context.Context) error {
	s.logger.Info("Closing graph driver")
	return s.driver.Close(ctx)
}

// VectorIndex returns the optionally associated vector index so callers
// can chain graph deletes with the matching vector deletes. Cross-store
// atomicity is not provided.
func (s *Store) VectorIndex() VectorIndex {
	return s.vectorIndex
}

// Setup declares the node-key constraints for the graph schema. Safe to
// run repeatedly.
func (s *Store) Setup(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("setup", start, err) }()

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	constraints := []string{
		`CREATE CONSTRAINT unique_org_id IF NOT EXISTS
		 FOR (o:Org) REQUIRE o.org_id IS NODE KEY`,
		`CREATE CONSTRAINT unique_org_user IF NOT EXISTS
		 FOR (u:User) REQUIRE (u.org_id, u.user_id) IS NODE KEY`,
		`CREATE CONSTRAINT unique_org_agent IF NOT EXISTS
		 FOR (a:Agent) REQUIRE (a.org_id, a.agent_id) IS NODE KEY`,
		`CREATE CONSTRAINT unique_user_memory IF NOT EXISTS
		 FOR (m:Memory) REQUIRE (m.org_id, m.user_id, m.memory_id) IS NODE KEY`,
		`CREATE CONSTRAINT unique_user_interaction IF NOT EXISTS
		 FOR (i:Interaction) REQUIRE (i.org_id, i.user_id, i.interaction_id) IS NODE KEY`,
		// Date nodes are reserved for time-bucketed indexing
		`CREATE CONSTRAINT unique_user_date IF NOT EXISTS
		 FOR (d:Date) REQUIRE (d.org_id, d.user_id, d.date) IS NODE KEY`,
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		for _, constraint := range constraints {
			result, err := tx.Run(ctx, constraint, nil)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return apperrors.FromNeo4j("setup", err)
	}

	s.logger.Info("Graph schema constraints in place")
	return nil
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
}

// validateArgs rejects malformed caller input before any session is
// opened
func (s *Store) validateArgs(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return apperrors.InvalidArgument(err.Error())
	}
	return nil
}

func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.record(operation, time.Since(start), err)
	}
}
