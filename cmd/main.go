package main

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dmoroni/uniteams/internal/api"
	"github.com/dmoroni/uniteams/internal/config"
	"github.com/dmoroni/uniteams/internal/db"
	"github.com/dmoroni/uniteams/internal/notification"
	"github.com/dmoroni/uniteams/internal/repository"
	"github.com/dmoroni/uniteams/internal/service"
	"github.com/dmoroni/uniteams/pkg/logger"
)

func main() {
	logger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err = pool.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	logger.Info("database connection established")

	if err = runMigrations(cfg); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	logger.Info("migrations applied")

	transactor := db.NewPgxTransactor(pool)

	courseRepo := repository.NewPgxCourseRepository(pool)
	studentRepo := repository.NewPgxStudentRepository(pool)
	teamRepo := repository.NewPgxTeamRepository(pool)
	tokenRepo := repository.NewPgxTokenRepository(pool)

	notifier := notification.NewLogNotifier(logger)

	team := service.NewTeamService(transactor).
		WithCourseRepo(courseRepo).
		WithStudentRepo(studentRepo).
		WithTeamRepo(teamRepo).
		WithTokenRepo(tokenRepo).
		WithNotifier(notifier).
		WithBaseURL(cfg.BaseURL)
	course := service.NewCourseService(transactor).
		WithCourseRepo(courseRepo).
		WithStudentRepo(studentRepo).
		WithTeamRepo(teamRepo)
	student := service.NewStudentService(transactor).
		WithStudentRepo(studentRepo).
		WithCourseRepo(courseRepo)

	healthChecker := api.MustNewHealthChecker(health.Config{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	e := echo.New()

	handler := api.NewHandler(logger).
		WithTeamService(team).
		WithCourseService(course).
		WithStudentService(student).
		WithHealthChecker(healthChecker)

	handler.RegisterRoutes(e)

	logger.Info("server starting", zap.String("port", cfg.HTTPPort))
	if err = e.Start(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
