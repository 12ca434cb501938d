// Command mcp-timeline provides an MCP server for visa timeline management.
//
// This server exposes cases, events, pending detections and procedure steps
// as tools. Reminders are queued in the notification database shared with
// `visa-timeline dispatch`.
//
// Usage:
//
//	./mcp-timeline          # Start MCP server (stdio)
//	./mcp-timeline --help   # Show help
//
// Environment:
//
//	VISA_TIMELINE_CONFIG  Path to the config file (default: ~/.visa-timeline/config.yaml)
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/notexe/visa-timeline/internal/config"
	"github.com/notexe/visa-timeline/internal/notify"
	"github.com/notexe/visa-timeline/internal/storage"
	"github.com/notexe/visa-timeline/internal/timeline"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		}
	}

	configPath := os.Getenv("VISA_TIMELINE_CONFIG")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	loc, _ := cfg.Timeline.Location()

	ctx := context.Background()

	if cfg.Storage.Driver == config.DriverSQLite || cfg.Storage.Driver == config.DriverDiskv {
		if err := config.EnsureDir(cfg.Storage.Path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
			os.Exit(1)
		}
	}
	backend, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	opts := []timeline.Option{
		timeline.WithLocation(loc),
		timeline.WithReminderHour(cfg.Timeline.ReminderHour),
		timeline.WithAppName(cfg.Timeline.AppName),
		timeline.WithStorageKey(cfg.Storage.Key),
	}
	if cfg.Notify.Enabled {
		if err := config.EnsureDir(cfg.Notify.DBPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
			os.Exit(1)
		}
		queue, err := notify.NewQueue(cfg.Notify.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open notification queue: %v\n", err)
			os.Exit(1)
		}
		defer queue.Close()
		opts = append(opts, timeline.WithNotifier(queue))
	}

	store, err := timeline.Open(ctx, backend, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open timeline: %v\n", err)
		os.Exit(1)
	}

	s := timeline.NewServer(store)

	if err := server.ServeStdio(s.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`MCP Timeline Server - Visa timeline management via MCP protocol

USAGE:
    mcp-timeline          Start MCP server (communicates via stdio)
    mcp-timeline --help   Show this help

ENVIRONMENT:
    VISA_TIMELINE_CONFIG            Path to the config file
                                    Default: ~/.visa-timeline/config.yaml
    VISA_TIMELINE_STORAGE__DRIVER   sqlite, diskv, postgres or memory
    VISA_TIMELINE_STORAGE__PATH     SQLite file or diskv directory
    VISA_TIMELINE_STORAGE__DSN      Postgres connection string

TOOLS:
    upsert_case        Create or update a case (country, visa_type, objective, stage)
    add_event          Add a confirmed event and schedule its reminders
    add_detection      Queue a detected date for confirmation
    list_pending       List detections awaiting confirmation
    resolve_detection  Save, edit or ignore a pending detection
    edit_event_date    Replace the dates of an event
    complete_event     Mark an event completed
    delete_event       Delete an event and cancel its reminders
    toggle_step        Toggle a procedure checklist step
    set_silent_mode    Switch silent mode for new detections
    get_timeline       Show cases, events and pending detections

CONFIGURATION:
    Add to your MCP client config:
    {
      "mcpServers": {
        "visa-timeline": {
          "command": "/path/to/mcp-timeline",
          "args": []
        }
      }
    }`)
}
