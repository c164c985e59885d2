package main

import (
	"fmt"
	"os"

	_ "time/tzdata" // Asia/Jakarta on hosts without a zoneinfo database

	"github.com/hazardwatch/hazardwatch/cmd"
	"github.com/hazardwatch/hazardwatch/internal/conf"
)

func main() {
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
