package commands

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
)

func setupRoot(t *testing.T) func() {
	t.Helper()
	root, err := ioutil.TempDir("", "permachain-cmd-test")
	require.NoError(t, err)
	viper.Set("home", root)
	return func() {
		os.RemoveAll(root)
		viper.Reset()
		config = cfg.DefaultConfig()
	}
}

func TestParseConfig(t *testing.T) {
	clean := setupRoot(t)
	defer clean()

	conf, err := ParseConfig()
	require.NoError(t, err)
	assert.Equal(t, viper.GetString("home"), conf.RootDir)
	assert.Equal(t, cfg.DefaultLogLevel, conf.LogLevel)
}

// The pre-run hook parses the configured log level against the default.
func TestRootCmdPreRun(t *testing.T) {
	clean := setupRoot(t)
	defer clean()

	viper.Set("log_level", "debug")
	require.NoError(t, RootCmd.PersistentPreRunE(RootCmd, nil))
	assert.Equal(t, "debug", config.LogLevel)
}
