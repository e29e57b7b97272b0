package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/config"
	"github.com/aeranixia/Inventory-Bot/internal/db"
)

// app carries state shared by every subcommand.
type app struct {
	v        *viper.Viper
	cfgFile  string
	cfg      *config.Config
	closeLog func()
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "inventorybot",
		Short:         "Guild inventory ledger with scheduled reports and backups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			closeLog, err := setupLogger(cfg.Log)
			if err != nil {
				return err
			}
			a.closeLog = closeLog
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./inventorybot.yaml if present)")
	flags.StringP("db", "d", "", "SQLite database path")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.StringP("log", "l", "", "also write logs to this file")
	mustBind(a.v, "database.path", flags.Lookup("db"))
	mustBind(a.v, "log.level", flags.Lookup("log-level"))
	mustBind(a.v, "log.path", flags.Lookup("log"))

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newInitCmd(a),
		newReportCmd(a),
		newBackupCmd(a),
	)
	return root
}

// openDatabase opens the configured database, creating its directory, and
// applies pending migrations.
func (a *app) openDatabase(ctx context.Context) (*sql.DB, error) {
	path := a.cfg.Database.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, err
	}
	slog.Info("database ready", "path", path)
	return database, nil
}

func (a *app) clock() *clock.Clock {
	return clock.New(clockwork.NewRealClock(), clock.Zone(a.cfg.Clock.UTCOffsetHours))
}
