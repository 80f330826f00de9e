package sql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects the relational backend the SQL repository runs on.
type Config struct {
	Type    string `yaml:"type" mapstructure:"type"` // "sqlite", "postgres" or "mysql".
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	Migrate bool   `yaml:"migrate" mapstructure:"migrate"` // Apply pending migrations on startup.
}

// OpenDatabase opens a gorm connection for the configured backend.
func OpenDatabase(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}
	return db, nil
}
