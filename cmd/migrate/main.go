package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/db"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	noTx    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory for create and validate")
	flag.StringVar(&opts.name, "name", "", "migration name for create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.BoolVar(&opts.noTx, "no-tx", false, "create a migration that runs outside a transaction")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// File-only commands work without database settings.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("-name is required")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, migrate.CreateOptions{NoTransaction: opts.noTx})
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		if err := migrate.ValidateEmbedded(); err != nil {
			return fmt.Errorf("embedded: %w", err)
		}
		fmt.Println("migrations valid")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	migrator, err := migrate.New(sqlDB, logg)
	if err != nil {
		return err
	}

	if err := apply(ctx, migrator, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}

type migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) error
	To(ctx context.Context, version string) error
}

func apply(ctx context.Context, m migrator, opts options) error {
	switch opts.cmd {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "status":
		return m.Status(ctx)
	case "version":
		if opts.version == "" {
			return errors.New("-version is required")
		}
		return m.To(ctx, opts.version)
	default:
		return fmt.Errorf("unknown command %q", opts.cmd)
	}
}
