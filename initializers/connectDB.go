package initializers

import (
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB // migrations also use this handle

func ConnectDB() error {
	log.Println("Connecting to database")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("env variable DATABASE_URL is empty")
	}

	pgConfig := postgres.Config{
		PreferSimpleProtocol: true, // disable implicit prepared statement usage
		DriverName:           "postgres",
		DSN:                  dsn,
	}

	var err error
	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		PrepareStmt:          false,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	log.Println("Database connection successful")
	return nil
}
