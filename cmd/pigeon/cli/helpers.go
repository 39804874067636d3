package cli

import (
	"os"
	"strings"

	"github.com/pigeonhq/pigeon/internal/credstore"
)

// resolveDataDir returns the data directory from --data-dir,
// PIGEON_DATA_DIR, or ~/.pigeon as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("PIGEON_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.pigeon"
}

// openCredStore opens the local SQLite credential store. The management
// commands only ever talk to the development store; the legacy Postgres
// database is managed elsewhere.
func openCredStore() (*credstore.SQLiteStore, error) {
	return credstore.NewSQLiteStore(resolveDataDir())
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
