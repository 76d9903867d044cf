// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tau "github.com/pedronobrol/tau/services/tau"
)

var (
	verifyFunction   string
	verifyRequires   string
	verifyEnsures    string
	verifyInvariants []string
	verifyVariant    string
	verifyAll        bool
	verifySkipCache  bool
	verifyJSON       bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [source file]",
	Short: "Verify a function against its specification",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyFunction, "function", "f", "", "function to verify (default: first in file)")
	verifyCmd.Flags().StringVar(&verifyRequires, "requires", "", "precondition")
	verifyCmd.Flags().StringVar(&verifyEnsures, "ensures", "", "postcondition")
	verifyCmd.Flags().StringArrayVar(&verifyInvariants, "invariant", nil, "loop invariant (repeatable)")
	verifyCmd.Flags().StringVar(&verifyVariant, "variant", "", "loop variant")
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "verify every function in the file")
	verifyCmd.Flags().BoolVar(&verifySkipCache, "skip-cache", false, "ignore cached certificates")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "emit the full result as JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	svc, err := tau.FromConfig(cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()

	if verifyAll {
		resp, err := svc.VerifyAll(ctx, tau.VerifyAllRequest{
			Source:    string(source),
			SkipCache: verifySkipCache,
		})
		if err != nil {
			return err
		}
		if verifyJSON {
			return printJSON(resp)
		}
		for name, r := range resp.Results {
			printVerdict(name, r)
		}
		if !resp.AllVerified {
			os.Exit(1)
		}
		return nil
	}

	resp, err := svc.VerifyFunction(ctx, tau.VerifyRequest{
		Source:       string(source),
		FunctionName: verifyFunction,
		FunctionSpec: tau.FunctionSpec{
			Requires:   verifyRequires,
			Ensures:    verifyEnsures,
			Invariants: verifyInvariants,
			Variant:    verifyVariant,
		},
		SkipCache: verifySkipCache,
	})
	if err != nil {
		return err
	}
	if verifyJSON {
		return printJSON(resp)
	}

	printVerdict(resp.FunctionName, resp)
	if resp.Bug != nil && resp.Bug.Explanation != "" {
		fmt.Println("  bug:", resp.Bug.Explanation)
	}
	if !resp.Verified {
		os.Exit(1)
	}
	return nil
}

func printVerdict(name string, r *tau.VerifyResponse) {
	status := "FAILED"
	if r.Verified {
		status = "VERIFIED"
	}
	suffix := ""
	if r.Cached {
		suffix = " (cached)"
	} else if r.Rounds > 0 {
		suffix = fmt.Sprintf(" (%d round(s))", r.Rounds)
	}
	fmt.Printf("%-10s %s%s\n", status, name, suffix)
	if !r.Verified && r.Reason != "" {
		fmt.Println("  reason:", r.Reason)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
