package json

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/api"
)

func TestStore_LoadMissing(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nested", "state.json"), nil)
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, api.ErrNoState)
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, nil)
	require.NoError(t, err)
	ctx := context.Background()

	want := api.PersistedState{
		ProcessedIDs: []string{"a", "b"},
		DismissedIDs: []string{"c"},
		Settings: api.DetectionSettings{
			NotificationListenerEnabled: true,
			SmsPermissionGranted:        true,
		},
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = os.Stat(path + ".tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"processedIds"`)
	assert.Contains(t, string(data), `"dismissedIds"`)
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		noState bool
	}{
		{name: "empty file", content: "", noState: true},
		{name: "corrupt file", content: "{not json", noState: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))
			s, err := New(path, nil)
			require.NoError(t, err)

			_, err = s.Load(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.noState, errors.Is(err, api.ErrNoState))
		})
	}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}
