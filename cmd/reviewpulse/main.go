package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Local development keeps credentials in .env; absence is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	var root = &cobra.Command{Use: "reviewpulse"}

	root.AddCommand(serveCMD(), migrateCMD(), ingestDemoCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
