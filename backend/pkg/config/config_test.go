package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("NEO4J_USER", "")
	t.Setenv("NEO4J_PASSWORD", "")
	t.Setenv("NEO4J_DATABASE", "")
	t.Setenv("MAX_CHAIN_LENGTH", "")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4jURI)
	assert.Equal(t, "neo4j", cfg.Neo4jUser)
	assert.Equal(t, "neo4j", cfg.Neo4jDatabase)
	assert.Equal(t, 10000, cfg.MaxChainLength)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("NEO4J_URI", "bolt://db.internal:7687")
	t.Setenv("NEO4J_USER", "svc")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("NEO4J_DATABASE", "memories")
	t.Setenv("MAX_CHAIN_LENGTH", "500")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "bolt://db.internal:7687", cfg.Neo4jURI)
	assert.Equal(t, "svc", cfg.Neo4jUser)
	assert.Equal(t, "secret", cfg.Neo4jPassword)
	assert.Equal(t, "memories", cfg.Neo4jDatabase)
	assert.Equal(t, 500, cfg.MaxChainLength)
}

func TestLoad_BadChainLengthFallsBack(t *testing.T) {
	t.Setenv("MAX_CHAIN_LENGTH", "not-a-number")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 10000, cfg.MaxChainLength)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Env:            "development",
		Neo4jURI:       "bolt://localhost:7687",
		Neo4jUser:      "neo4j",
		Neo4jPassword:  "password",
		Neo4jDatabase:  "neo4j",
		MaxChainLength: 100,
	}
	assert.NoError(t, cfg.Validate())

	cfg.Neo4jURI = ""
	assert.Error(t, cfg.Validate())

	cfg.Neo4jURI = "bolt://localhost:7687"
	cfg.MaxChainLength = 0
	assert.Error(t, cfg.Validate())
}

func TestEnvPredicates(t *testing.T) {
	dev := &Config{Env: "development"}
	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())

	prod := &Config{Env: "production"}
	assert.True(t, prod.IsProduction())
	assert.False(t, prod.IsDevelopment())
}
