package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/avenlon/sitepulse/config"
	"github.com/avenlon/sitepulse/db"
	"github.com/avenlon/sitepulse/errors"
	"github.com/avenlon/sitepulse/logger"
)

// loadConfig resolves configuration honoring the global --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// openDatabase opens and migrates the database at the configured path.
// Callers own the returned handle.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", cfg.Database.Path)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return database, nil
}
