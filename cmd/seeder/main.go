package main

import (
	"context"
	"flag"

	"creditgate/internal/adapters/config"
	"creditgate/internal/adapters/postgres"
	"creditgate/internal/seeds"
	devseeds "creditgate/internal/seeds/dev"
	stagingseeds "creditgate/internal/seeds/staging"
	testseeds "creditgate/internal/seeds/test"
	"creditgate/pkg/logger"
)

func main() {
	env := flag.String("env", "dev", "Environment: dev, staging, test")
	dryRun := flag.Bool("dry-run", false, "List seed functions without executing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	log.Infow("Starting seeder",
		"environment", *env,
		"dry_run", *dryRun,
		"database", cfg.Postgres.Database,
	)

	seedFuncs := getSeedFunctions(*env)
	if len(seedFuncs) == 0 {
		log.Warnw("No seeds available for environment", "environment", *env)
		return
	}

	log.Infow("Found seed functions", "environment", *env, "count", len(seedFuncs))

	if *dryRun {
		log.Info("Dry-run mode: seed functions validated")
		return
	}

	client, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	seeder := seeds.New(client.DB())

	for i, seedFunc := range seedFuncs {
		log.Infow("Executing seed", "step", i+1, "total", len(seedFuncs))

		if err := seedFunc(ctx, seeder); err != nil {
			log.Errorw("Failed to execute seed",
				"step", i+1,
				"error", err,
			)
			return
		}

		log.Infow("Seed completed", "step", i+1)
	}

	log.Info("All seeds applied successfully")
}

// getSeedFunctions returns seed functions for the given environment.
// Order matters: pricing before anything that references models.
func getSeedFunctions(env string) []func(context.Context, *seeds.Seeder) error {
	switch env {
	case "dev":
		return []func(context.Context, *seeds.Seeder) error{
			devseeds.SeedModelPricing,
			devseeds.SeedBaseSettings,
			devseeds.SeedCreditGroups,
		}
	case "test":
		return []func(context.Context, *seeds.Seeder) error{
			testseeds.SeedModelPricing,
			testseeds.SeedBaseSettings,
		}
	case "staging":
		return []func(context.Context, *seeds.Seeder) error{
			stagingseeds.SeedBaseSettings,
		}
	default:
		return nil
	}
}
