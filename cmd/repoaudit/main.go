package main

import (
	"fmt"
	"os"

	"github.com/dshills/repoaudit/internal/cli"
	"github.com/dshills/repoaudit/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	os.Exit(cli.Run())
}
