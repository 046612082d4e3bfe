package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolattend/internal/auth"
	"schoolattend/internal/config"
)

func newCLI() (*commandLine, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := config.App{JWTIssuer: "school-attendance", JWTSigningKey: "test-signing-key-0123456789", TokenTTL: time.Hour}
	return &commandLine{cfg: cfg, out: &out}, &out
}

func TestRunToken(t *testing.T) {
	cli, out := newCLI()
	err := cli.run([]string{"admin", "token", "-sub", "s2", "-role", "captain", "-program", "BSCS", "-year", "1st Year", "-section", "A"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	claims, err := auth.Parse(lines[0], cli.cfg.JWTSigningKey, cli.cfg.JWTIssuer)
	require.NoError(t, err)
	assert.Equal(t, "s2", claims.Subject)
	assert.True(t, claims.InSection("BSCS", "1st Year", "A"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
	assert.True(t, strings.HasPrefix(lines[1], "expires "))
}

func TestRunTokenTTLFlag(t *testing.T) {
	cli, out := newCLI()
	require.NoError(t, cli.run([]string{"admin", "token", "-sub", "svc-report", "-role", "admin", "-ttl", "10m"}))

	claims, err := auth.Parse(strings.SplitN(out.String(), "\n", 2)[0], cli.cfg.JWTSigningKey, cli.cfg.JWTIssuer)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRunRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: []string{"admin"}},
		{name: "unknown command", args: []string{"admin", "refresh"}},
		{name: "missing subject", args: []string{"admin", "token", "-role", "admin"}},
		{name: "unknown role", args: []string{"admin", "token", "-sub", "u1", "-role", "parent"}},
		{name: "captain without class", args: []string{"admin", "token", "-sub", "u1", "-role", "captain"}},
		{name: "negative ttl", args: []string{"admin", "token", "-sub", "u1", "-role", "admin", "-ttl", "-1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, _ := newCLI()
			assert.ErrorIs(t, cli.run(tt.args), errHelp)
		})
	}
}
