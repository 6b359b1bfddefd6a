package postgresadapter

import (
	"context"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the polling-station tables, unique indexes
// included.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(Models()...)
}
