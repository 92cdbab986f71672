// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ember-works/pyrostat/pkg/tison"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a captured status frame offline",
	Long: `Decode a status frame captured from the wire, given as hex bytes.
Spaces, colons and a 0x prefix are accepted:

  pyrostat decode "AA 55 0D 01 00 03 5E 01 00 01 06 7C 00 B4 00 15 00 00 00 00"

Prints the decoded fields plus any plausibility warnings. No connection
is made; this works purely on the given bytes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

// parseHexFrame accepts the usual capture formats: contiguous hex, space
// or colon separated bytes, optional 0x prefixes.
func parseHexFrame(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ":", "", ",", "", "0x", "", "0X", "").Replace(s)
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return buf, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	buf, err := parseHexFrame(args)
	if err != nil {
		return err
	}

	fmt.Printf("frame (%d bytes):\n%s\n\n", len(buf), tison.FormatFrame(buf))

	st, err := tison.Decode(buf)
	if err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}

	fmt.Print(tison.FormatStatus(st))
	for _, anomaly := range tison.ValidateStatus(st) {
		fmt.Printf("  warning: %s\n", anomaly.Message)
	}
	return nil
}
