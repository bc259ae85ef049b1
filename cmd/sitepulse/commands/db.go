package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avenlon/sitepulse/errors"
	"github.com/avenlon/sitepulse/scan"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the SitePulse database",
	Long: `Manage database operations including migration and statistics.

Examples:
  sitepulse db migrate   # Apply pending schema migrations
  sitepulse db stats     # Show content and scan statistics`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show content and scan statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	// openDatabase migrates as part of opening
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("Database at %s is up to date\n", cfg.Database.Path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	var totalPosts, publishedPosts, postTypes, metaRows int
	err = database.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM posts),
			(SELECT COUNT(*) FROM posts WHERE status = 'publish'),
			(SELECT COUNT(*) FROM post_types WHERE public = 1),
			(SELECT COUNT(*) FROM post_meta)
	`).Scan(&totalPosts, &publishedPosts, &postTypes, &metaRows)
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, "failed to query content stats")
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:      %s\n", cfg.Database.Path)
	fmt.Printf("Total Posts:        %d\n", totalPosts)
	fmt.Printf("Published Posts:    %d\n", publishedPosts)
	fmt.Printf("Public Post Types:  %d\n", postTypes)
	fmt.Printf("Post Meta Rows:     %d\n", metaRows)
	fmt.Println()

	store := scan.NewStore(database)
	history, err := store.History()
	if err != nil {
		return err
	}
	fmt.Printf("Scan History:       %d of %d records\n", len(history), scan.HistoryLimit)

	lastRun, err := store.LastRun()
	if err != nil {
		return err
	}
	if lastRun != nil {
		fmt.Printf("Last Scan:          %s (health %.1f)\n", lastRun.ScanID, lastRun.HealthScore)
	} else {
		fmt.Printf("Last Scan:          none\n")
	}
	return nil
}
