package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/agentpool/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostedDriver_StartSucceedsWhenReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	driver := &HostedDriver{log: zerolog.Nop()}
	entry := &types.ProcessEntry{
		Key: "main:openai-gpt4",
		Endpoint: types.Endpoint{
			Provider: types.ProviderOpenAI,
			BaseURL:  server.URL,
		},
	}

	baseURL, err := driver.Start(context.Background(), entry, time.Second)
	require.NoError(t, err)
	assert.Equal(t, server.URL, baseURL)
}

func TestHostedDriver_StartFailsOnMissingBaseURL(t *testing.T) {
	driver := &HostedDriver{log: zerolog.Nop()}
	entry := &types.ProcessEntry{
		Endpoint: types.Endpoint{Provider: types.ProviderAnthropic},
	}

	_, err := driver.Start(context.Background(), entry, time.Second)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLaunchFailed))
}

func TestHostedDriver_StartTimesOutWhenUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	driver := &HostedDriver{log: zerolog.Nop()}
	entry := &types.ProcessEntry{
		Endpoint: types.Endpoint{Provider: types.ProviderCustom, BaseURL: server.URL},
	}

	_, err := driver.Start(context.Background(), entry, 150*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindHealthTimeout))
}

func TestHostedDriver_StopIsNoop(t *testing.T) {
	driver := &HostedDriver{log: zerolog.Nop()}
	err := driver.Stop(context.Background(), &types.ProcessEntry{}, time.Second)
	assert.NoError(t, err)
}
