package db

import (
	"log"
	"time"

	"hako-backend/internal/config"
	"hako-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB connects to the configured database and migrates the schema.
func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	DB, err = gorm.Open(postgres.Open(config.AppConfig.Database.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	log.Println("✅ Database connected successfully")

	if err := DB.AutoMigrate(
		&models.VaultState{},
		&models.Holder{},
		&models.AllowedAsset{},
		&models.DestinationEntry{},
		&models.Deposit{},
		&models.WithdrawalRequest{},
		&models.PseudoIdentity{},
		&models.ReplayKey{},
		&models.ExternalVault{},
		&models.GatewayCustody{},
		&models.Event{},
	); err != nil {
		log.Fatalf("Failed to migrate database schema: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("Failed to access underlying sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("✅ Database schema migrated")
}
