// Package main is the syncstore command line tool: a thin shell around the
// record-store adapter for inspecting and editing a local collection.
//
// Usage:
//
//	syncstore --db store.db --collection articles create '{"title":"hello"}'
//	syncstore --db store.db --collection articles list
//	syncstore --db store.db --collection articles status
//
// Flags can also be set through the environment (SYNCSTORE_DB,
// SYNCSTORE_COLLECTION, ...) or a .env file.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syncstore/syncstore/internal/adapter"
	"github.com/syncstore/syncstore/internal/engine"
	"github.com/syncstore/syncstore/internal/observability"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "syncstore",
	Short: "local record store for offline-first synchronization",
	Long: `syncstore manages a local, transactional store of records grouped
into one named collection, with a last-modified marker for synchronization
bookkeeping. Records are flat JSON objects with a unique "id" field.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the syncstore version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("syncstore v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "syncstore.db", "path to the database file")
	rootCmd.PersistentFlags().String("collection", "records", "collection name")
	rootCmd.PersistentFlags().String("log-level", "warn", "minimum log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		createCmd,
		updateCmd,
		getCmd,
		delCmd,
		listCmd,
		clearCmd,
		markCmd,
		statusCmd,
		versionCmd,
	)
}

// initConfig wires flags to the environment: any flag can be set as
// SYNCSTORE_<FLAG>, and .env files are picked up when present.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("syncstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}

// openAdapter builds the adapter for the configured database and
// collection. Logs go to stderr so stdout stays parseable.
func openAdapter() *adapter.Adapter {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(viper.GetString("log-level")),
	})
	logger := observability.NewLoggerWithHandler(viper.GetString("collection"), handler).
		With("db", viper.GetString("db"))

	return adapter.New(
		engine.NewSQLite(viper.GetString("db")),
		viper.GetString("collection"),
		adapter.WithLogger(logger),
	)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func main() {
	cobra.OnInitialize(initConfig)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
