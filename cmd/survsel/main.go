// Command survsel selects, fits, calibrates and plots the survival
// models of a uveitis cohort.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
