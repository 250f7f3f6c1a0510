package keypair

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_GeneratesMissingKeypair(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "auth"))

	generated, err := m.Load()
	require.NoError(t, err)
	assert.True(t, generated)
	assert.NotEmpty(t, m.JWTPublicKeyPEM())

	privInfo, err := os.Stat(filepath.Join(dir, "auth", privateKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), privInfo.Mode().Perm())

	pubInfo, err := os.Stat(filepath.Join(dir, "auth", publicKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), pubInfo.Mode().Perm())
}

func TestLoad_ReusesExistingKeypair(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "auth")
	m1 := NewManager(dir)
	_, err := m1.Load()
	require.NoError(t, err)
	firstPEM := m1.JWTPublicKeyPEM()

	m2 := NewManager(dir)
	generated, err := m2.Load()
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, firstPEM, m2.JWTPublicKeyPEM())
}

func TestIssueSessionJWT(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "auth"))
	_, err := m.Load()
	require.NoError(t, err)

	token, err := m.IssueSessionJWT("u1", "a@x.com", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
