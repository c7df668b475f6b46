package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bidwatch/bidwatch/internal/bids"
	"github.com/bidwatch/bidwatch/internal/catalog"
	"github.com/bidwatch/bidwatch/internal/rules"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "bidwatch.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&rules.Rule{},
		&bids.Record{},
		&catalog.Entry{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
