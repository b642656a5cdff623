package clamav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
)

func TestModes(t *testing.T) {
	off := NewClient(config.ScannerConfig{}, "off", nil)
	assert.False(t, off.Enabled())
	assert.False(t, off.Enforcing())

	enforce := NewClient(config.ScannerConfig{}, "Enforce", nil)
	assert.True(t, enforce.Enabled())
	assert.True(t, enforce.Enforcing())

	logOnly := NewClient(config.ScannerConfig{}, "log", nil)
	assert.True(t, logOnly.Enabled())
	assert.False(t, logOnly.Enforcing())
}

func TestScanBuffer_OffSkipsScan(t *testing.T) {
	client := NewClient(config.ScannerConfig{Address: "127.0.0.1:1"}, "off", nil)
	// Address is unreachable; off mode must not dial at all.
	result, err := client.ScanBuffer(context.Background(), []byte("anything"))
	require.NoError(t, err)
	assert.True(t, result.Clean)
}

func TestParseReply(t *testing.T) {
	clean, err := parseReply([]byte("stream: OK\x00"))
	require.NoError(t, err)
	assert.True(t, clean.Clean)

	infected, err := parseReply([]byte("stream: Eicar-Signature FOUND\x00"))
	require.NoError(t, err)
	assert.False(t, infected.Clean)
	assert.Equal(t, "Eicar-Signature", infected.Signature)

	_, err = parseReply([]byte("INSTREAM size limit exceeded. ERROR"))
	require.Error(t, err)
}
