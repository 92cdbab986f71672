// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-works/pyrostat/pkg/tison"
)

func TestParseCtlArgs(t *testing.T) {
	cases := []struct {
		args []string
		want tison.Command
	}{
		{[]string{"start"}, tison.StartStop(true)},
		{[]string{"stop"}, tison.StartStop(false)},
		{[]string{"level", "8"}, tison.SetLevel(8)},
		{[]string{"mode", "level"}, tison.SetMode(tison.ModeLevel)},
		{[]string{"mode", "temperature"}, tison.SetMode(tison.ModeTemperature)},
	}
	for _, tc := range cases {
		got, err := parseCtlArgs(tc.args)
		require.NoError(t, err, "%v", tc.args)
		assert.Equal(t, tc.want, got, "%v", tc.args)
	}
}

func TestParseCtlArgs_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"reboot"},
		{"level"},
		{"level", "high"},
		{"mode"},
		{"mode", "turbo"},
	} {
		_, err := parseCtlArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseHexFrame(t *testing.T) {
	want := []byte{0xAA, 0x55, 0x0D, 0x22}

	for _, input := range [][]string{
		{"AA550D22"},
		{"AA", "55", "0D", "22"},
		{"aa:55:0d:22"},
		{"0xAA 0x55 0x0D 0x22"},
	} {
		got, err := parseHexFrame(input)
		require.NoError(t, err, "%v", input)
		assert.Equal(t, want, got, "%v", input)
	}

	_, err := parseHexFrame([]string{"zz"})
	assert.Error(t, err)
}
