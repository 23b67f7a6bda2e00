package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"commerce-agent/handler"
	"commerce-agent/internal/actions"
	"commerce-agent/internal/cart"
	"commerce-agent/internal/catalog"
	"commerce-agent/internal/engine"
	"commerce-agent/internal/integrations/paramstore"
	"commerce-agent/internal/repository"
	"commerce-agent/internal/rules"
	"commerce-agent/internal/scheduler"
	"commerce-agent/internal/settings"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	sessionTimeout := time.Duration(envInt("SESSION_TIMEOUT_SECONDS", 1800)) * time.Second

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	repo, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	settingsLoader, err := settings.New(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create settings loader", "err", err)
		os.Exit(1)
	}

	catalogJSON, err := ssmClient.GetParameter(ctx, paramPrefix+"/catalog")
	if err != nil {
		slog.Error("failed to load catalog parameter", "err", err)
		os.Exit(1)
	}
	products, err := catalog.FromJSON([]byte(catalogJSON))
	if err != nil {
		slog.Error("failed to parse catalog", "err", err)
		os.Exit(1)
	}

	cartStore, err := cart.New(repo, products)
	if err != nil {
		slog.Error("failed to create cart store", "err", err)
		os.Exit(1)
	}

	// The deferred-job queue is external in production; fired jobs are only
	// logged here until the worker that consumes them is deployed.
	jobs, err := scheduler.NewTimers(func(jobName string, payload map[string]any) {
		slog.Info("scheduled job fired", "job", jobName, "payload", payload)
	})
	if err != nil {
		slog.Error("failed to create scheduler", "err", err)
		os.Exit(1)
	}

	// ---- Engine ----
	table, err := rules.DefaultTable()
	if err != nil {
		slog.Error("failed to build transition table", "err", err)
		os.Exit(1)
	}
	guards, err := rules.NewGuardRegistry(products)
	if err != nil {
		slog.Error("failed to build guard registry", "err", err)
		os.Exit(1)
	}
	registry, err := actions.NewRegistry(actions.Deps{
		Cart:      cartStore,
		Catalog:   products,
		Scheduler: jobs,
		Settings:  settingsLoader,
		Table:     table,
	})
	if err != nil {
		slog.Error("failed to build action registry", "err", err)
		os.Exit(1)
	}
	eng, err := engine.New(repo, table, guards, registry, engine.WithTimeout(sessionTimeout))
	if err != nil {
		slog.Error("failed to create engine", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(eng)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
