package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "svnmove-resolve", cmd.Use)
	assert.Contains(t, cmd.Long, "tree conflicts")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	names := []string{"resolve", "bump", "break-move", "test"}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			require.NotNil(t, subCmd)
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

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)

	wcFlag := cmd.PersistentFlags().Lookup("wc")
	require.NotNil(t, wcFlag)
}

func TestResolveCommandTakesOneVictimArg(t *testing.T) {
	cmd := NewRootCommand()
	resolveCmd, _, err := cmd.Find([]string{"resolve"})
	require.NoError(t, err)

	assert.NoError(t, resolveCmd.Args(resolveCmd, []string{"a/src"}))
	assert.Error(t, resolveCmd.Args(resolveCmd, []string{"a/src", "a/dst"}))
}

func TestBumpCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	bumpCmd, _, err := cmd.Find([]string{"bump"})
	require.NoError(t, err)

	depthFlag := bumpCmd.Flags().Lookup("depth")
	require.NotNil(t, depthFlag)
	assert.Equal(t, "infinity", depthFlag.DefValue)
}

func TestBreakMoveCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	breakMoveCmd, _, err := cmd.Find([]string{"break-move"})
	require.NoError(t, err)

	opDepthFlag := breakMoveCmd.Flags().Lookup("src-op-depth")
	require.NotNil(t, opDepthFlag)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "resolve", "a"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestResolveCommandRequiresDBAndWC(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"resolve", "a/src"})
	cmd.SetOut(new(noopWriter))
	cmd.SetErr(new(noopWriter))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
