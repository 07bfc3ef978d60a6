package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"github.com/kilianp07/ambudispatch/cmd"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
