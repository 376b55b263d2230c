// Package storage selects the catalog backend.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hotel_fusion/internal/shared"
	mysqlrepo "hotel_fusion/internal/storage/mysql"
	"hotel_fusion/internal/storage/sqlite"
	"hotel_fusion/internal/storage/sqlstore"
)

// Open connects to the catalog named by cfg.CatalogDriver.
func Open(ctx context.Context, cfg shared.Config) (*sqlstore.Store, error) {
	switch strings.ToLower(cfg.CatalogDriver) {
	case "", "mysql":
		return mysqlrepo.Open(ctx, cfg.MySQLDSN)
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown CATALOG_DRIVER %q", cfg.CatalogDriver)
}
