package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"mnemo/backend/internal/graph"
	"mnemo/backend/pkg/config"
	"mnemo/backend/pkg/logger"
)

// Seeds a demo tenant: one org, one user, one agent, and one interaction
// with a distilled memory. Useful for local development against an empty
// database.
func main() {
	orgName := flag.String("org", "Demo Org", "Organization name to create")
	userName := flag.String("user", "Demo User", "User name to create")
	agentLabel := flag.String("agent", "Demo Assistant", "Agent label to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting database seeding...")

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	store := graph.New(driver, graph.Options{
		Database:       cfg.Neo4jDatabase,
		Logger:         log,
		MaxChainLength: cfg.MaxChainLength,
	})

	log.Info("Applying schema constraints...")
	if err := store.Setup(ctx); err != nil {
		log.Fatal("Failed to apply schema constraints", zap.Error(err))
	}

	org, err := store.CreateOrganization(ctx, *orgName)
	if err != nil {
		log.Fatal("Failed to create organization", zap.Error(err))
	}

	user, err := store.CreateUser(ctx, org.OrgID, *userName)
	if err != nil {
		log.Fatal("Failed to create user", zap.Error(err))
	}

	agent, err := store.CreateAgent(ctx, org.OrgID, *agentLabel, &user.UserID)
	if err != nil {
		log.Fatal("Failed to create agent", zap.Error(err))
	}

	messages := []graph.MessageBlock{
		{Role: "user", Content: "Hi! I just started learning the guitar.", MsgPosition: 0},
		{Role: "assistant", Content: "That's great. Acoustic or electric?", MsgPosition: 1},
		{Role: "user", Content: "Acoustic, a hand-me-down from my dad.", MsgPosition: 2},
	}
	interaction := &graph.Interaction{
		OrgID:         org.OrgID,
		UserID:        user.UserID,
		AgentID:       agent.AgentID,
		InteractionID: "seed-interaction-1",
		Messages:      messages,
	}
	memories := []graph.Memory{
		{
			OrgID:          org.OrgID,
			UserID:         user.UserID,
			AgentID:        agent.AgentID,
			InteractionID:  interaction.InteractionID,
			MemoryID:       "seed-memory-1",
			Memory:         "User is learning acoustic guitar on an instrument inherited from their father",
			MessageSources: messages,
		},
	}
	if err := store.SaveInteractionWithMemories(ctx, interaction, memories); err != nil {
		log.Fatal("Failed to save seed interaction", zap.Error(err))
	}

	log.Info("Seeding complete",
		zap.String("org_id", org.OrgID),
		zap.String("user_id", user.UserID),
		zap.String("agent_id", agent.AgentID),
	)

	fmt.Fprintf(os.Stdout, "org_id=%s\nuser_id=%s\nagent_id=%s\n", org.OrgID, user.UserID, agent.AgentID)
}
