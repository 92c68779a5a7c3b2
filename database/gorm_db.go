package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/haven-media/haven/models"
)

// InitGormDB initializes and returns the main GORM database instance.
func InitGormDB(dataSourceName string) (*gorm.DB, error) {
	db, err := openSQLite(dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.MediaFile{},
		&models.Face{},
		&models.TableStat{},
	); err != nil {
		return nil, fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}

	log.Println("GORM Database initialized successfully at", dataSourceName)
	return db, nil
}

// InitStagingDB initializes the separate staging-queue database. Keeping the
// queue in its own file means staging churn never bloats or locks the
// primary store.
func InitStagingDB(dataSourceName string) (*gorm.DB, error) {
	db, err := openSQLite(dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.NewPath{},
		&models.NewFile{},
	); err != nil {
		return nil, fmt.Errorf("GORM AutoMigrate (staging) failed: %w", err)
	}

	log.Println("Staging database initialized successfully at", dataSourceName)
	return db, nil
}

// OpenReadOnly opens a database file without migrating it, for treating an
// imported archive's schema as a second, read-only instance.
func OpenReadOnly(path string) (*gorm.DB, error) {
	db, err := openSQLite(fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	// a second connection lets face lookups run while the forward media
	// cursor is still open; harmless on a read-only file
	sqlDB.SetMaxOpenConns(2)
	return db, nil
}

func openSQLite(dataSourceName string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: gormLogger,
		// per-connection statement cache, built once here and never
		// shared across database handles
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	// WAL for better concurrency; foreign keys for the cascading face delete
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		log.Printf("warning: failed to set WAL mode: %v", err)
	}
	if err := db.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	// the relational store is the single writer; one open connection keeps
	// sqlite transactions serialized and the WAL small
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
