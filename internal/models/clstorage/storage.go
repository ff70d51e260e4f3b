package clstorage

import (
	"blogcms/internal/gormzerologger"
	"blogcms/internal/models/clconfig"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	maxOpenConnsMysql = 25
	maxIdleConnsMysql = 5
	connMaxLifetime   = time.Hour
)

// Open ouvre la base configurée avec le logger gorm zerolog
func Open(cfg clconfig.DatabaseConfig, level string) (*gorm.DB, error) {
	switch cfg.Db {
	case "sqlite":
		return OpenSQLite(cfg.Path, level)
	case "mysql":
		return openMysql(cfg.Dsn, level)
	default:
		return nil, fmt.Errorf("le type de database doit etre sqlite ou mysql")
	}
}

// OpenSQLite ouvre une base sqlite avec une seule connexion, les écritures
// sont ainsi sérialisées par le pool
func OpenSQLite(path string, level string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), newGormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("erreur connexion base de données: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return db, nil
}

func openMysql(dsn string, level string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), newGormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("erreur connexion base de données: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConnsMysql)
	sqlDB.SetMaxIdleConns(maxIdleConnsMysql)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

func newGormConfig(level string) *gorm.Config {
	return &gorm.Config{
		Logger:         gormzerologger.New(level, gormzerologger.DefaultSlowThreshold),
		TranslateError: true,
	}
}

// Migrate crée ou met à jour les tables des modèles fournis
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("erreur migration: %w", err)
	}
	return nil
}

// Close ferme le pool sous-jacent
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
