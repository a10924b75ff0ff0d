package datastore

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/errors"
)

// MySQLStore implements the datastore interface on MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	// Build the DSN through mysql.Config so credentials get escaped.
	cfg := mysql.Config{
		User:   store.Settings.Output.MySQL.Username,
		Passwd: store.Settings.Output.MySQL.Password,
		Net:    "tcp",
		Addr:   fmt.Sprintf("%s:%s", store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port),
		DBName: store.Settings.Output.MySQL.Database,
		Params: map[string]string{
			"charset":   "utf8mb4",
			"parseTime": "True",
			"loc":       "Local",
		},
	}
	dsn := cfg.FormatDSN()

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open-mysql").
			Context("host", store.Settings.Output.MySQL.Host).
			Context("database", store.Settings.Output.MySQL.Database).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open-mysql").
			Build()
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "MySQL", cfg.Addr)
}

// Close releases the underlying connection pool.
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "close-mysql").
			Build()
	}
	return sqlDB.Close()
}
