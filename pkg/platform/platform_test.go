package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/platform/termux"
)

func TestDetect(t *testing.T) {
	p, err := Detect(ModeDisabled, termux.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeDisabled, p.Name())

	p, err = Detect(ModeTermux, termux.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "termux", p.Name())

	_, err = Detect("ios", termux.Config{}, nil)
	require.Error(t, err)
}

func TestDetect_AutoWithoutTermux(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	p, err := Detect(ModeAuto, termux.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeDisabled, p.Name())
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	var p Platform = Disabled{}

	granted, err := p.NotificationPermission(ctx)
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = p.SmsPermission(ctx)
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = p.RequestSmsPermission(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, granted)

	require.ErrorIs(t, p.OpenNotificationSettings(ctx), ErrUnavailable)

	_, err = p.Notifications(ctx)
	require.ErrorIs(t, err, ErrUnavailable)

	msgs, err := p.ListSms(ctx, time.Now().Add(-time.Hour), 10)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, msgs)
}
