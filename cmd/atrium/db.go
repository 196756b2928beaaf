package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Atrium database",
		Long:  "Creates the Atrium database, migrates all tables, and seeds the Headquarters room.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atrium.yaml", "path to Atrium config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s (driver: %s)\n", configPath, cfg.Server.DB.Driver)

	gormDB, err := openForInit(out, cfg.Server.DB)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedHQ(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Headquarters room ready")

	fmt.Fprintln(out, "\nAtrium database initialized successfully.")
	return nil
}

// openForInit opens the configured database, creating it first when the
// driver needs an explicit create (sqlite files are created on open).
func openForInit(out io.Writer, cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Host, cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		if err := db.CreateDatabase(adminDB, cfg.Database); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database)
	}

	gormDB, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gormDB, nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Atrium database",
		Long: `Drops the Atrium database and re-creates it from config.

For sqlite this deletes the database file; for MySQL it drops the database.
Either way the reset re-runs migration and seeds the Headquarters room.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes || force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atrium.yaml", "path to Atrium config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt (alias for --yes)")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	target := cfg.Server.DB.Path
	if cfg.Server.DB.Driver == "mysql" {
		target = cfg.Server.DB.Database
	}
	fmt.Fprintf(out, "Loaded config from %s (driver: %s)\n", configPath, cfg.Server.DB.Driver)

	if !skipConfirm {
		if !confirmReset(cmd, target) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	switch cfg.Server.DB.Driver {
	case "mysql":
		adminDB, err := db.ConnectAdmin(cfg.Server.DB.Host, cfg.Server.DB.Port)
		if err != nil {
			return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Server.DB.Host, cfg.Server.DB.Port, err)
		}
		if err := db.DropDatabase(adminDB, cfg.Server.DB.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Server.DB.Database)
	default:
		if err := os.Remove(cfg.Server.DB.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", cfg.Server.DB.Path, err)
		}
		fmt.Fprintf(out, "Removed %s\n", cfg.Server.DB.Path)
	}

	gormDB, err := openForInit(out, cfg.Server.DB)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedHQ(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Headquarters room ready")

	fmt.Fprintln(out, "\nAtrium database reset successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
