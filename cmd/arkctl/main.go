package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/shonenark/ark-gateway/internal/cli"
)

// Version is set at build time using ldflags
var Version = "dev"

// Commit is set at build time using ldflags
var Commit = "unknown"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(cli.Execute(fmt.Sprintf("%s (commit: %s)", Version, Commit), os.Args[1:], os.Stdout, os.Stderr))
}
