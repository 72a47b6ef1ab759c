package main

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaropoint/devident/internal/harness"
)

func startEcho(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = harness.NewResponder(harness.ResponderConfig{}, nil, nil).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func runProbe(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProbePrintsReply(t *testing.T) {
	port := startEcho(t)

	out, err := runProbe(t, "--host", "127.0.0.1", "--port", strconv.Itoa(port), "--plain", "--message", "ping")
	require.NoError(t, err)
	assert.Equal(t, "Echo: ping\n", out)
}

func TestProbeRequiresHost(t *testing.T) {
	_, err := runProbe(t)
	assert.ErrorContains(t, err, "--host is required")
}

func TestProbeConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = runProbe(t, "--host", "127.0.0.1", "--port", strconv.Itoa(port), "--plain")
	assert.ErrorIs(t, err, harness.ErrConnection)
}
