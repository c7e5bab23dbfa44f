package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/realtobyfu/grove-sub000/internal/config"
	"github.com/realtobyfu/grove-sub000/internal/nudge"
	"github.com/realtobyfu/grove-sub000/internal/store"
	"github.com/spf13/cobra"
)

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("GROVE_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

var nudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Inspect and drive the nudge engine",
}

var nudgeNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run one scheduler tick",
	RunE:  runNudgeNow,
}

var (
	nudgeListLimit int
)

var nudgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent nudges",
	RunE:  runNudgeList,
}

var resurfaceCmd = &cobra.Command{
	Use:   "resurface",
	Short: "Inspect the resurfacing queue",
}

var resurfaceStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show resurfacing queue counts",
	RunE:  runResurfaceStats,
}

func init() {
	nudgeCmd.AddCommand(nudgeNowCmd)
	nudgeCmd.AddCommand(nudgeListCmd)
	resurfaceCmd.AddCommand(resurfaceStatsCmd)

	nudgeListCmd.Flags().IntVarP(&nudgeListLimit, "limit", "n", 20, "Maximum number of nudges to show")
}

func runNudgeNow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(defaultConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	engine := nudge.NewEngine(db, cfg.Nudges)
	engine.GenerateNudges()

	current, err := db.CurrentNudge()
	if err != nil {
		return fmt.Errorf("current nudge: %w", err)
	}
	if current == nil {
		fmt.Println("Nothing qualified this tick.")
		return nil
	}
	fmt.Printf("[%s] %s\n", current.Type, current.Message)
	return nil
}

func runNudgeList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	nudges, err := db.ListRecentNudges(nudgeListLimit)
	if err != nil {
		return fmt.Errorf("list nudges: %w", err)
	}
	if len(nudges) == 0 {
		fmt.Println("No nudges yet.")
		return nil
	}

	for _, n := range nudges {
		created := time.UnixMilli(n.CreatedAt).Format("2006-01-02 15:04")
		fmt.Printf("%s  %-17s %-9s %s\n", created, n.Type, n.Status, n.Message)
	}
	return nil
}

func runResurfaceStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	stats, err := nudge.NewResurfacer(db).Stats()
	if err != nil {
		return fmt.Errorf("queue stats: %w", err)
	}

	fmt.Println("## Resurfacing Queue")
	fmt.Println()
	fmt.Printf("  eligible: %d\n", stats.Total)
	fmt.Printf("  overdue:  %d\n", stats.Overdue)
	fmt.Printf("  upcoming: %d\n", stats.Upcoming)
	fmt.Printf("  paused:   %d\n", stats.Paused)
	return nil
}
