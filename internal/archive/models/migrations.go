package models

import (
	"context"
	"fmt"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
)

// AutoMigrate creates the archive tables and their extra indexes.
// force runs even when database.automigrate is off.
func AutoMigrate(ctx context.Context, db *database.DB, force bool) error {
	if !force && !db.Config().AutoMigrate {
		return nil
	}

	if err := db.AutoMigrate(true, &File{}, &Retrieval{}); err != nil {
		return fmt.Errorf("failed to migrate archive tables: %w", err)
	}

	if err := createIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// createIndexes adds the partial unique index that allows at most one
// pending or in-progress retrieval per file.
func createIndexes(ctx context.Context, db *database.DB) error {
	return db.Conn(ctx).Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS ux_retrievals_active_file
		ON retrievals(file_id)
		WHERE status IN ('pending', 'in_progress')
	`).Error
}
