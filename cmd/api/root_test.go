package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"checkout-fulfillment/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
storage:
  driver: "sqlite"
stripe:
  webhook_secret: "whsec_cli"
jwt:
  secret: "cli-jwt-secret"
  issuer: "checkout-fulfillment"
  expiry: "2h"
credential:
  encryption_key: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
  fingerprint_key: "00112233445566778899aabbccddeeff"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestIssueToken(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)

	stdout, stderr, err := runCLI(t, "--config", cfgPath, "issue-token", "ops@example.com")
	require.NoError(t, err)
	assert.Contains(t, stderr, "expires")

	token := strings.TrimSpace(stdout)
	claims, err := service.NewJWTTokenService("cli-jwt-secret", time.Hour, "checkout-fulfillment").Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
}

func TestIssueToken_RequiresSubject(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)

	_, _, err := runCLI(t, "--config", cfgPath, "issue-token")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)

	stdout, _, err := runCLI(t, "-c", cfgPath, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "storage=sqlite")
}

func TestConfigValidate_RejectsUnsignedInRelease(t *testing.T) {
	cfgPath := writeConfig(t, testConfig+`
server:
  mode: "release"
`)
	cfgPath2 := writeConfig(t, strings.Replace(testConfig, `webhook_secret: "whsec_cli"`, `allow_unsigned_webhooks: true`, 1)+`
server:
  mode: "release"
`)

	_, _, err := runCLI(t, "-c", cfgPath, "config", "validate")
	require.NoError(t, err)

	_, _, err = runCLI(t, "-c", cfgPath2, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release mode")
}

func TestCatalogFromConfig(t *testing.T) {
	cfgPath := writeConfig(t, testConfig)
	ctx := &commandContext{configFlag: &cfgPath}
	cfg, err := ctx.ensureConfig()
	require.NoError(t, err)

	catalog := catalogFromConfig(cfg.Products)

	p, ok := catalog.Lookup("digital_credentialed")
	require.True(t, ok)
	assert.Equal(t, int64(1000), p.Amount)
	assert.True(t, catalog.RequiresCredential("digital_credentialed"))
	assert.False(t, catalog.RequiresCredential("digital_plain"))
}
