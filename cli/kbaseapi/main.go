package main

import (
	"os"

	"github.com/joho/godotenv"

	servecmder "github.com/papercomputeco/kbase/cmd/kbase/serve"
)

func main() {
	_ = godotenv.Load()

	cmd := servecmder.NewServeCmd()
	cmd.Use = "kbaseapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .kbase/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
