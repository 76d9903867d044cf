// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// tau verifies functions written in a restricted Python-like subset by
// translating them to WhyML and driving Why3 through an oracle-assisted
// refinement loop. Verified proofs are cached as certificates.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pedronobrol/tau/pkg/logging"
	"github.com/pedronobrol/tau/services/tau/config"
)

var (
	cfgPath string
	cfg     config.Config
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tau",
	Short:         "Verify restricted imperative functions with Why3",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			// An adjacent tau.yaml is picked up automatically.
			if _, err := os.Stat("tau.yaml"); err == nil {
				path = "tau.yaml"
			}
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		logger, err = logging.New(logging.Config{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to tau.yaml")
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(proofsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
