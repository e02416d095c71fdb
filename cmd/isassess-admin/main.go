package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/auth"
	"github.com/isassess/isassess/pkg/config"
	"github.com/isassess/isassess/pkg/logging"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/seed"
	"github.com/isassess/isassess/pkg/store/postgres"
)

const usage = `usage: isassess-admin <command> [flags]

commands:
  migrate up|down                       apply or roll back one schema migration
  create-user -email E -password P      create a user (-role, -name optional)
  seed <file.json>                      load departments and questionnaires
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(cfg, logger, os.Args[2:])
	case "create-user":
		err = runCreateUser(ctx, cfg, logger, os.Args[2:])
	case "seed":
		err = runSeed(ctx, cfg, logger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func runMigrate(cfg *config.Config, logger *zap.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("migrate needs a direction: up or down")
	}
	direction := postgres.Direction(strings.ToLower(args[0]))
	return postgres.Migrate(&cfg.Database, direction, logger)
}

func runCreateUser(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "login email")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", string(model.RoleUser), "user, moderator, manager or admin")
	name := fs.String("name", "", "full name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("-email and -password are required")
	}
	r := model.Role(strings.ToLower(*role))
	if !r.Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	user := &model.User{ID: uuid.New(), Email: *email, FullName: *name, PasswordHash: hash, Role: r}
	if err := postgres.NewUserRepository(db.DB()).Create(ctx, user); err != nil {
		return err
	}
	logger.Info("user created", zap.String("id", user.ID.String()), zap.String("email", user.Email), zap.String("role", string(r)))
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("seed needs exactly one file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	f, err := seed.Parse(data)
	if err != nil {
		return err
	}

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return seed.Apply(ctx, f,
		postgres.NewDepartmentRepository(db.DB()),
		postgres.NewQuestionnaireRepository(db.DB()),
		logger,
	)
}
