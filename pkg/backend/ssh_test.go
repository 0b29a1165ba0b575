package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemotePID_NonIntegerOutputIsLaunchFailed(t *testing.T) {
	_, err := parseRemotePID("bash: vllm: command not found\n")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLaunchFailed))
	assert.False(t, IsKind(err, KindSSHFailed))
}

func TestParseRemotePID_ValidOutput(t *testing.T) {
	pid, err := parseRemotePID("  12345\n")
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}
