package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	database "cloud.google.com/go/spanner/admin/database/apiv1"
	"cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	instance "cloud.google.com/go/spanner/admin/instance/apiv1"
	"cloud.google.com/go/spanner/admin/instance/apiv1/instancepb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/light-bringer/storefront-listview/internal/config"
	"github.com/light-bringer/storefront-listview/internal/pkg/logger"
)

var (
	configPath = flag.String("config", os.Getenv("APP_CONFIG"), "Path to a YAML config file")
	migrateDir = flag.String("migrations", "migrations", "Directory containing migration SQL files")
)

type migrator struct {
	cfg config.SpannerConfig
	log *zap.Logger
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, true); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	m := &migrator{cfg: cfg.Spanner, log: logger.Get()}
	if host := os.Getenv("SPANNER_EMULATOR_HOST"); host != "" {
		m.log.Info("using Spanner emulator", zap.String("host", host))
	}

	if err := m.run(context.Background()); err != nil {
		m.log.Fatal("migration failed", zap.Error(err))
	}
	m.log.Info("migrations completed")
}

func (m *migrator) run(ctx context.Context) error {
	if err := m.ensureInstance(ctx); err != nil {
		return fmt.Errorf("failed to ensure instance: %w", err)
	}
	if err := m.ensureDatabase(ctx); err != nil {
		return fmt.Errorf("failed to ensure database: %w", err)
	}
	if err := m.applyMigrations(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (m *migrator) ensureInstance(ctx context.Context) error {
	instanceAdmin, err := instance.NewInstanceAdminClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create instance admin client: %w", err)
	}
	defer instanceAdmin.Close()

	name := fmt.Sprintf("projects/%s/instances/%s", m.cfg.ProjectID, m.cfg.InstanceID)
	_, err = instanceAdmin.GetInstance(ctx, &instancepb.GetInstanceRequest{Name: name})
	if err == nil {
		m.log.Info("instance exists", zap.String("instance", name))
		return nil
	}
	if status.Code(err) != codes.NotFound {
		m.log.Warn("unexpected error checking instance", zap.Error(err))
		return nil
	}

	m.log.Info("creating instance", zap.String("instance", name))
	op, err := instanceAdmin.CreateInstance(ctx, &instancepb.CreateInstanceRequest{
		Parent:     fmt.Sprintf("projects/%s", m.cfg.ProjectID),
		InstanceId: m.cfg.InstanceID,
		Instance: &instancepb.Instance{
			Config:      fmt.Sprintf("projects/%s/instanceConfigs/emulator-config", m.cfg.ProjectID),
			DisplayName: "Development Instance",
			NodeCount:   1,
		},
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("failed to create instance: %w", err)
	}
	if _, err := op.Wait(ctx); err != nil && status.Code(err) != codes.AlreadyExists {
		m.log.Warn("instance creation did not complete cleanly", zap.Error(err))
	}
	return nil
}

func (m *migrator) ensureDatabase(ctx context.Context) error {
	adminClient, err := database.NewDatabaseAdminClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	_, err = adminClient.GetDatabase(ctx, &databasepb.GetDatabaseRequest{Name: m.cfg.Database()})
	if err == nil {
		m.log.Info("database exists", zap.String("database", m.cfg.Database()))
		return nil
	}
	if status.Code(err) != codes.NotFound {
		if os.Getenv("SPANNER_EMULATOR_HOST") != "" {
			m.log.Warn("proceeding with database in emulator mode", zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to check database: %w", err)
	}

	m.log.Info("creating database", zap.String("database", m.cfg.Database()))
	op, err := adminClient.CreateDatabase(ctx, &databasepb.CreateDatabaseRequest{
		Parent:          fmt.Sprintf("projects/%s/instances/%s", m.cfg.ProjectID, m.cfg.InstanceID),
		CreateStatement: fmt.Sprintf("CREATE DATABASE `%s`", m.cfg.DatabaseID),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("failed to create database: %w", err)
	}
	if _, err := op.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for database creation: %w", err)
	}
	return nil
}

func (m *migrator) applyMigrations(ctx context.Context) error {
	adminClient, err := database.NewDatabaseAdminClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	files, err := filepath.Glob(filepath.Join(*migrateDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migration files: %w", err)
	}
	if len(files) == 0 {
		m.log.Info("no migration files found", zap.String("dir", *migrateDir))
		return nil
	}

	for _, file := range files {
		name := filepath.Base(file)

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		op, err := adminClient.UpdateDatabaseDdl(ctx, &databasepb.UpdateDatabaseDdlRequest{
			Database:   m.cfg.Database(),
			Statements: splitDDLStatements(string(content)),
		})
		if err != nil {
			if status.Code(err) == codes.FailedPrecondition && strings.Contains(err.Error(), "Duplicate name") {
				m.log.Info("migration already applied", zap.String("file", name))
				continue
			}
			return fmt.Errorf("failed to start DDL update for %s: %w", name, err)
		}
		if err := op.Wait(ctx); err != nil {
			if strings.Contains(err.Error(), "Duplicate name") {
				m.log.Info("migration already applied", zap.String("file", name))
				continue
			}
			return fmt.Errorf("failed to apply DDL for %s: %w", name, err)
		}

		m.log.Info("applied migration", zap.String("file", name))
	}

	return nil
}

// splitDDLStatements drops comment lines and splits on semicolons.
func splitDDLStatements(content string) []string {
	var cleaned []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	var result []string
	for _, stmt := range strings.Split(strings.Join(cleaned, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}
