package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"extract", "batch", "networking", "food-log", "forms", "cache", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "formfill", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestExtractCommand_Flags(t *testing.T) {
	for name, def := range map[string]string{
		"form":         "contacts",
		"input":        "-",
		"multi":        "false",
		"current-time": "false",
		"output":       "json",
		"out":          "",
	} {
		flag := extractCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "extract command should have --%s flag", name)
		assert.Equal(t, def, flag.DefValue, name)
	}
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "batch command should have --limit flag")
	assert.Equal(t, "100", flag.DefValue)

	flag = batchCmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "xlsx", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCacheCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range cacheCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["prune"])
	assert.True(t, names["sync"])

	flag := cachePruneCmd.Flags().Lookup("older-than")
	require.NotNil(t, flag)
	assert.Equal(t, "720h0m0s", flag.DefValue)
}

func TestFormsCommands(t *testing.T) {
	var out bytes.Buffer
	formsListCmd.SetOut(&out)
	require.NoError(t, formsListCmd.RunE(formsListCmd, nil))
	assert.Contains(t, out.String(), "contacts")
	assert.Contains(t, out.String(), "food_log")

	out.Reset()
	formsShowCmd.SetOut(&out)
	require.NoError(t, formsShowCmd.RunE(formsShowCmd, []string{"crm_contact"}))
	assert.Contains(t, out.String(), "name: crm_contact")
	assert.Contains(t, out.String(), "type: phonenumber")

	err := formsShowCmd.RunE(formsShowCmd, []string{"nope"})
	assert.Error(t, err)
}
