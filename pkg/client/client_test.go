package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenFile(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "token.json"), TokenFile(filepath.Join("data", "client_secret.json")))
}

func TestSaveAndLoadToken(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "creds", "client_secret.json")
	assert.False(t, HasToken(secret))

	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, saveToken(TokenFile(secret), want))
	assert.True(t, HasToken(secret))

	info, err := os.Stat(TokenFile(secret))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := tokenFromFile(TokenFile(secret))
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.Expiry.Equal(got.Expiry))
}

func TestNew_MissingSecret(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.json"), nil, SheetsScope)
	assert.Error(t, err)
}

func TestNew_InvalidSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bogus":true}`), 0o600))

	_, err := New(path, nil, SheetsScope)
	assert.Error(t, err)
}

func TestGenerateState(t *testing.T) {
	a, err := generateState()
	require.NoError(t, err)
	b, err := generateState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 44)
}
