package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatmesh/chatmesh/internal/config"
	"github.com/chatmesh/chatmesh/internal/storage/duckstore"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the DuckDB schema for a duckdb-backed node",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	ui := NewUI()
	ui.Header(iconInfo, "Initializing chatmesh storage")
	ui.Blank()

	ui.StartSpinner("Loading cluster config...")
	start := time.Now()
	file, err := config.Load(configPath)
	if err != nil {
		ui.StopSpinnerError("Failed to load config")
		return err
	}
	ui.StopSpinner("Config loaded", time.Since(start))

	if file.StorageDriver != "duckdb" {
		ui.Warn("storage_driver is not duckdb, nothing to initialize (memory storage needs no schema)")
		return nil
	}

	path := file.StoragePath
	if path == "" {
		path = fmt.Sprintf("chatmesh-%d.duckdb", file.SelfID)
	}

	ui.StartSpinner("Opening database...")
	start = time.Now()
	db, err := duckstore.Open(path)
	if err != nil {
		ui.StopSpinnerError("Failed to open database")
		return err
	}
	defer db.Close()
	ui.StopSpinner("Database opened", time.Since(start))

	ui.StartSpinner("Running migrations...")
	start = time.Now()
	st, err := duckstore.New(db)
	if err != nil {
		ui.StopSpinnerError("Failed to wrap store")
		return err
	}
	if err := st.Ensure(context.Background()); err != nil {
		ui.StopSpinnerError("Failed to run migrations")
		return err
	}
	ui.StopSpinner("Migrations complete", time.Since(start))

	ui.Summary([][2]string{
		{"Self ID", fmt.Sprintf("%d", file.SelfID)},
		{"Database", path},
	})
	ui.Success("Storage initialized successfully")
	return nil
}
