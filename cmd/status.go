// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ember-works/pyrostat/pkg/tison"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Poll the heater once and print its status",
	Long: `Connect to the heater, request a single status frame, print it in
human-readable form, and disconnect. Field plausibility problems are
reported as warnings after the status block.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := pollOnce(cfg, log)
	if err != nil {
		return err
	}

	fmt.Print(tison.FormatStatus(st))
	for _, anomaly := range tison.ValidateStatus(st) {
		fmt.Printf("  warning: %s\n", anomaly.Message)
	}
	return nil
}
