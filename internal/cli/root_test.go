package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "loopsmith", cmd.Use)
	assert.Contains(t, cmd.Long, "loop trees")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"rewrite", "validate", "history", "platform", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRewriteCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	rewriteCmd, _, err := cmd.Find([]string{"rewrite"})
	require.NoError(t, err)

	modeFlag := rewriteCmd.Flags().Lookup("mode")
	require.NotNil(t, modeFlag)
	assert.Equal(t, "m", modeFlag.Shorthand)
	assert.Equal(t, "baseline", modeFlag.DefValue)

	kernelFlag := rewriteCmd.Flags().Lookup("kernel")
	require.NotNil(t, kernelFlag)
	assert.Equal(t, "k", kernelFlag.Shorthand)

	outputFlag := rewriteCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	for _, name := range []string{"passes", "openmp", "blockinner", "blockshape", "config", "db"} {
		assert.NotNil(t, rewriteCmd.Flags().Lookup(name), name)
	}
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	historyCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	dbFlag := historyCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	// --db is required, so default is empty
	assert.Equal(t, "", dbFlag.DefValue)

	pruneFlag := historyCmd.Flags().Lookup("prune")
	require.NotNil(t, pruneFlag)
	assert.Equal(t, "false", pruneFlag.DefValue)
}

func TestPlatformCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	platformCmd, _, err := cmd.Find([]string{"platform"})
	require.NoError(t, err)

	coresFlag := platformCmd.Flags().Lookup("cores")
	require.NotNil(t, coresFlag)
	assert.Equal(t, "0", coresFlag.DefValue)

	assert.NotNil(t, platformCmd.Flags().Lookup("simd"))
	assert.NotNil(t, platformCmd.Flags().Lookup("compiler"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
	assert.NotNil(t, testCmd.Flags().Lookup("golden"))
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	assert.Contains(t, cmd.Short, "loop nest rewriter")
	assert.Contains(t, cmd.Long, "journals every rewrite")
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer

	quiet := (&RootOptions{}).Logger(&buf)
	quiet.Info("hidden")
	quiet.Debug("hidden")
	quiet.Warn("shown", "pass", "padding")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=WARN msg=shown pass=padding")

	buf.Reset()
	verbose := (&RootOptions{Verbose: true}).Logger(&buf)
	verbose.Debug("decision", "block_size", 8)
	assert.Contains(t, buf.String(), "level=DEBUG msg=decision block_size=8")
}
