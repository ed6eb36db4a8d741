// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("2018-10-18", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, time.October, 18, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("", time.UTC)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDate("18/10/2018", time.UTC)
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestEndOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	day := time.Date(2018, time.October, 18, 0, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2018, time.October, 18, 23, 59, 59, 0, loc), endOfDay(day))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "twinmatch dev\n", out.String())
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"candidates", "posts", "match", "index", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	sub := map[string]bool{}
	for _, c := range indexCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.Equal(t, map[string]bool{"create": true, "users": true, "posts": true}, sub)
}
