package db

import (
	"database/sql"
	"fmt"

	"Cadenza/config"
	"Cadenza/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't
// exist. The media_index table is the host media index the library
// scanner queries; rows are written by whatever ingests audio into the
// device (out of scope here).
func InitDB() error {
	if err := createMediaIndexTable(); err != nil {
		return err
	}
	logger.Info("Database initialization completed")
	return nil
}

func createMediaIndexTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS media_index (
		media_id VARCHAR(128) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255) NOT NULL DEFAULT '',
		album VARCHAR(255) NOT NULL DEFAULT '',
		album_id VARCHAR(128) NOT NULL DEFAULT '',
		album_artist VARCHAR(255) NOT NULL DEFAULT '',
		genre VARCHAR(128) NOT NULL DEFAULT '',
		year INT NOT NULL DEFAULT 0,
		track_number INT NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		has_embedded_artwork TINYINT(1) NOT NULL DEFAULT 0,
		artwork_ref VARCHAR(512) NOT NULL DEFAULT '',
		date_added TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_media_index_duration (duration_ms),
		INDEX idx_media_index_date_added (date_added)
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create media_index table: %w", err)
	}
	return nil
}
