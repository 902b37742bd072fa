package db

import (
	"ledger_system/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
)

// Models lists every table owned by the ledger, in dependency order
var Models = []any{
	&domain.Account{},
	&domain.SubAccount{},
	&domain.Transaction{},
	&domain.DeletionRequest{},
	&domain.Scheme{},
	&domain.SchemeAllocation{},
	&domain.DeferredTask{},
}

// Open connects to MySQL with driver errors translated into gorm sentinels
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
}

// Migrate creates or updates the schema for all ledger tables
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models...); err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
