package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "source_directory: " + src + "\n" +
		"recursive: false\n" +
		"history:\n" +
		"  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfigRecursiveFlagOnlyAppliesWhenPassed(t *testing.T) {
	src := t.TempDir()
	cfgFile = writeConfigFile(t, src)
	defer func() {
		cfgFile = ""
		recursive = true
		rootCmd.Flags().Lookup("recursive").Changed = false
	}()

	// Flag not passed: the config file's value must survive the flag's
	// default.
	cfg, _, err := loadConfig(rootCmd, nil)
	require.NoError(t, err)
	assert.False(t, cfg.Recursive)

	// Flag passed explicitly: it overrides the config file.
	require.NoError(t, rootCmd.Flags().Set("recursive", "true"))
	cfg, _, err = loadConfig(rootCmd, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Recursive)
}
