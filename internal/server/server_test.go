package server_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/repoingest/internal/server"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerCreation(t *testing.T) {
	srv := server.New("test-version", testLogger())
	require.NotNil(t, srv)
	require.NotNil(t, srv.MCPServer())
	require.NotNil(t, srv.HTTPHandler())
}

func TestServerWithInMemoryTransport(t *testing.T) {
	srv := server.New("0.1.0-test", testLogger())
	srv.Setup()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.MCPServer().Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	initResult := session.InitializeResult()
	require.NotNil(t, initResult)
	assert.Equal(t, server.Name, initResult.ServerInfo.Name)
	assert.Equal(t, "0.1.0-test", initResult.ServerInfo.Version)

	for i := range 3 {
		_, err := session.ListTools(ctx, nil)
		require.NoError(t, err, "request %d should succeed", i)
	}

	assert.NoError(t, session.Close())
	cancel()

	select {
	case err := <-serverErr:
		if err != nil {
			t.Logf("server stopped with: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("server did not stop within timeout")
	}
}
