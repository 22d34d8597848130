// Command admin provides schema, seeding and account maintenance for the
// calendar backend.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"calendarapp/internal/config"
	"calendarapp/internal/database"
	"calendarapp/internal/featureflags"
	"calendarapp/internal/repository"
	"calendarapp/internal/seed"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// connector opens the database. applySchema is false for commands that
// manage the schema themselves.
type connector func(applySchema bool) (*gorm.DB, *config.Config, error)

func main() {
	app := newApp(os.Stdout, connectFromConfig)
	if err := app.Run(os.Args); err != nil {
		slog.Error("Admin command failed", "error", err)
		os.Exit(1)
	}
}

func connectFromConfig(applySchema bool) (*gorm.DB, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: applySchema})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return db, cfg, nil
}

func newApp(out io.Writer, connect connector) *cli.App {
	return &cli.App{
		Name:      "admin",
		Usage:     "Maintenance commands for the calendar backend.",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			migrateCommand(out, connect),
			seedCommand(out, connect),
			usersCommand(out, connect),
			flagsCommand(out, connect),
		},
	}
}

func migrateCommand(out io.Writer, connect connector) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply, roll back or inspect schema migrations.",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply pending migrations.",
				Action: func(c *cli.Context) error {
					db, cfg, err := connect(false)
					if err != nil {
						return err
					}
					// The embedded SQL targets PostgreSQL; SQLite is always built from the models.
					if cfg.DBDriver == database.DriverSQLite {
						if err := database.AutoMigrate(db.WithContext(c.Context)); err != nil {
							return fmt.Errorf("auto-migrate: %w", err)
						}
						fmt.Fprintln(out, "sqlite schema migrated")
						return nil
					}
					if err := database.RunMigrations(c.Context, db); err != nil {
						return fmt.Errorf("sql migrations failed: %w", err)
					}
					fmt.Fprintln(out, "sql migrations applied")
					return nil
				},
			},
			{
				Name:      "down",
				Usage:     "Roll back the latest migration, or the one given by --version.",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "version", Usage: "Migration version to roll back."},
				},
				Action: func(c *cli.Context) error {
					db, _, err := connect(false)
					if err != nil {
						return err
					}
					if c.IsSet("version") {
						version := c.Int("version")
						if err := database.RollbackMigration(c.Context, db, version); err != nil {
							return fmt.Errorf("rollback failed: %w", err)
						}
						fmt.Fprintf(out, "rolled back migration %d\n", version)
						return nil
					}
					version, err := database.RollbackLatest(c.Context, db)
					if err != nil {
						return fmt.Errorf("rollback failed: %w", err)
					}
					if version == 0 {
						fmt.Fprintln(out, "no applied migrations")
						return nil
					}
					fmt.Fprintf(out, "rolled back migration %d\n", version)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show the schema mode and pending migrations.",
				Action: func(c *cli.Context) error {
					db, cfg, err := connect(false)
					if err != nil {
						return err
					}
					status, err := database.GetSchemaStatus(c.Context, db, cfg)
					if err != nil {
						return fmt.Errorf("schema status failed: %w", err)
					}
					fmt.Fprintf(out, "mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
						status.Mode, status.Environment, status.WillRunSQL, status.WillRunAutoMigrate,
						len(status.AppliedVersions), len(status.PendingMigrations))
					for _, m := range status.PendingMigrations {
						fmt.Fprintf(out, "pending: %s\n", m.String())
					}
					return nil
				},
			},
		},
	}
}

func seedCommand(out io.Writer, connect connector) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create a demo account and random users with events.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "users", Value: 5, Usage: "Number of random users."},
			&cli.IntFlag{Name: "events", Value: 10, Usage: "Events per user."},
			&cli.BoolFlag{Name: "clean", Usage: "Delete all users and events first."},
			&cli.Int64Flag{Name: "seed", Usage: "Random seed for reproducible data."},
		},
		Action: func(c *cli.Context) error {
			db, cfg, err := connect(true)
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a production database")
			}
			result, err := seed.Seed(c.Context, db, seed.Options{
				NumUsers:      c.Int("users"),
				EventsPerUser: c.Int("events"),
				Clean:         c.Bool("clean"),
				Seed:          c.Int64("seed"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "seeded %d users and %d events (demo: %s)\n", result.Users, result.Events, seed.DemoEmail)
			return nil
		},
	}
}

func usersCommand(out io.Writer, connect connector) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Inspect and remove accounts.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List accounts with their event counts.",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
					&cli.IntFlag{Name: "offset"},
				},
				Action: func(c *cli.Context) error {
					db, _, err := connect(true)
					if err != nil {
						return err
					}
					users, err := repository.NewUserRepository(db).List(c.Context, c.Int("limit"), c.Int("offset"))
					if err != nil {
						return err
					}
					if len(users) == 0 {
						fmt.Fprintln(out, "no users found")
						return nil
					}

					events := repository.NewEventRepository(db)
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tEMAIL\tNAME\tPROVIDER\tEVENTS")
					for _, u := range users {
						count, err := events.CountByUser(c.Context, u.ID)
						if err != nil {
							return err
						}
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", u.ID, u.Email, u.DisplayName, u.AuthProvider, count)
					}
					return w.Flush()
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an account and all of its events.",
				ArgsUsage: "<user_id>",
				Action: func(c *cli.Context) error {
					id, err := parseUserID(c)
					if err != nil {
						return err
					}
					db, _, err := connect(true)
					if err != nil {
						return err
					}
					if err := repository.NewUserRepository(db).Delete(c.Context, id); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted user %d\n", id)
					return nil
				},
			},
		},
	}
}

func flagsCommand(out io.Writer, connect connector) *cli.Command {
	return &cli.Command{
		Name:  "flags",
		Usage: "Show how the configured feature flags evaluate.",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "user", Usage: "Evaluate for this user id."},
		},
		Action: func(c *cli.Context) error {
			_, cfg, err := connect(false)
			if err != nil {
				return err
			}
			manager := featureflags.NewManager(cfg.FeatureFlags)
			userID := c.Uint("user")
			for _, name := range manager.Names() {
				fmt.Fprintf(out, "%s=%t\n", name, manager.Enabled(name, userID))
			}
			return nil
		},
	}
}

func parseUserID(c *cli.Context) (uint, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("usage: admin users delete <user_id>")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", c.Args().First())
	}
	return uint(id), nil
}
