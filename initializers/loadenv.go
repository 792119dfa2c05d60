package initializers

import (
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv pulls variables from a local .env file when one exists. Missing
// files are not fatal; deployments set real environment variables.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, using process environment")
		return err
	}
	log.Println("env loaded successfully")
	return nil
}
