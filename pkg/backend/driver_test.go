package backend

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_UnknownTransport(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	entry := &types.ProcessEntry{Transport: types.Transport("bogus")}

	_, err := d.Start(context.Background(), entry, time.Second)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLaunchFailed))

	err = d.Stop(context.Background(), entry, time.Second)
	require.Error(t, err)
}

func TestDispatcher_RoutesHostedNoop(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	_, ok := d.drivers[types.TransportHostedNoop].(*HostedDriver)
	assert.True(t, ok)
}
