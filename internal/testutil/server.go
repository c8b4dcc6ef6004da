// A NEW file to hold a shared test server setup utility, which simplifies all API tests.

package testutil

import (
	"testing"

	"github.com/loanwell/lectern-go/internal/api"
	"github.com/loanwell/lectern-go/internal/config"
	"github.com/loanwell/lectern-go/internal/core"
	"github.com/loanwell/lectern-go/internal/drm"
)

// TestConfig returns a configuration with every path pointed at a temporary
// directory and short timeouts suitable for tests.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Path = ":memory:"
	cfg.Library.Path = t.TempDir()
	cfg.Bundles.Path = t.TempDir()
	cfg.Catalog.TimeoutSeconds = 5
	cfg.Download.TimeoutSeconds = 5
	cfg.Download.Workers = 2
	return cfg
}

// SetupTestApp assembles a core.App around an in-memory database. The
// connector may be nil for apps without DRM support.
func SetupTestApp(t *testing.T, connector drm.Connector) *core.App {
	t.Helper()
	db := SetupTestDB(t)

	app, err := core.NewApp("test", TestConfig(t), db, connector)
	if err != nil {
		t.Fatalf("Failed to set up test app: %v", err)
	}
	return app
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *core.App) {
	t.Helper()
	app := SetupTestApp(t, nil)
	return api.NewServer(app), app
}
