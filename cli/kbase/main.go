package main

import (
	"os"

	"github.com/joho/godotenv"

	kbasecmder "github.com/papercomputeco/kbase/cmd/kbase"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cmd := kbasecmder.NewKbaseCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
