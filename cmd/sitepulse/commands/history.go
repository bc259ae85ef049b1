package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avenlon/sitepulse/errors"
	"github.com/avenlon/sitepulse/scan"
)

// HistoryCmd manages the scan history ledger
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and prune scan history",
	Long: `Inspect the bounded scan history ledger.

Examples:
  sitepulse history ls              # List past scans, newest first
  sitepulse history ls --limit 10   # Only the 10 most recent
  sitepulse history show SCN_abc    # Full record for one scan
  sitepulse history rm SCN_abc      # Remove one record`,
}

var historyListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List past scans, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show one history record in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "rm <scan-id>",
	Short: "Remove one history record",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRemove,
}

var historyLimitFlag int

func init() {
	HistoryCmd.AddCommand(historyListCmd)
	HistoryCmd.AddCommand(historyShowCmd)
	HistoryCmd.AddCommand(historyRemoveCmd)
	historyListCmd.Flags().IntVar(&historyLimitFlag, "limit", 0, "Maximum records to show (0 = all)")
}

func openScanStore(cmd *cobra.Command) (*scan.Store, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return scan.NewStore(database), func() { database.Close() }, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openScanStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	history, err := store.History()
	if err != nil {
		return err
	}
	if historyLimitFlag > 0 && historyLimitFlag < len(history) {
		history = history[:historyLimitFlag]
	}

	if len(history) == 0 {
		fmt.Println("No scans recorded yet")
		return nil
	}

	fmt.Printf("%-42s %-20s %-10s %9s %7s\n", "SCAN ID", "COMPLETED", "TRIGGER", "PROCESSED", "HEALTH")
	for _, rec := range history {
		fmt.Printf("%-42s %-20s %-10s %9d %7.1f\n",
			rec.ScanID,
			time.Unix(rec.Timestamp, 0).Format("2006-01-02 15:04:05"),
			rec.Trigger,
			rec.Processed,
			rec.HealthScore)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openScanStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	rec, err := store.GetScanRecord(args[0])
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runHistoryRemove(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openScanStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	deleted, err := store.DeleteScanRecord(args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NewNotFoundError("scan record %s", args[0])
	}
	fmt.Printf("Removed scan record %s\n", args[0])
	return nil
}
