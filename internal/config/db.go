package config

import (
	"fmt"
	"os"
)

// GetDatabaseDSN returns the MySQL connection string for the forecast history
// store. The DB_* variables win over DATABASE_DSN; ok is false when neither is set.
func GetDatabaseDSN() (string, bool) {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database), true
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn, true
	}

	return "", false
}
