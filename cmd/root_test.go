package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"migrate", "sweep", "expire-drafts"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, c.Name())
	}

	require.NotNil(t, migrateCmd.Flags().Lookup("reset"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	old := configPath
	t.Cleanup(func() { configPath = old })

	configPath = filepath.Join(t.TempDir(), "missing.toml")
	_, err := loadConfig()
	require.Error(t, err)
}
