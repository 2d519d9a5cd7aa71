package main

import (
	"fmt"
	"log"
	"os"

	"github.com/camden-git/fieldsurvey/config"
	"github.com/camden-git/fieldsurvey/database"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
	appName = "fieldsurvey"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Gas station field survey backend",
		Long: `fieldsurvey stores technical surveys of gas stations, the photos taken
on site and the measurement annotations drawn over them.

Running it without a subcommand starts the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Printf("Info: No .env file found or error loading: %v", err)
			}
			if configPath != "" {
				return os.Setenv("CONFIG_FILE", configPath)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schemas and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	})
	cmd.AddCommand(renderCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func migrate() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.DatabasePath, err)
	}

	cacheDB, err := database.InitDB(cfg.CacheDBPath)
	if err != nil {
		return err
	}
	defer cacheDB.Close()

	log.Printf("Migrated %s and %s", cfg.DatabasePath, cfg.CacheDBPath)
	return nil
}
