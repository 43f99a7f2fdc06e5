package effect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shared-alarm/internal/config"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

var errTestStart = errors.New("no such file")

// TestNew selects players by name.
func TestNew(t *testing.T) {
	t.Parallel()

	player, err := New(config.EffectLog)
	require.NoError(t, err)
	require.IsType(t, LogPlayer{}, player)

	player, err = New(config.EffectCommand)
	require.NoError(t, err)
	require.IsType(t, new(CommandPlayer), player)

	_, err = New("fireworks")
	require.ErrorIs(t, err, errUnknownEffect)
}

// TestCommandFor covers every supported OS and both alarm types.
func TestCommandFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos    string
		typ     domain.Type
		program string
		arg     string
	}{
		{goos: "linux", typ: domain.TypeSound, program: "paplay", arg: "alarm-clock-elapsed"},
		{goos: "linux", typ: domain.TypeVibrate, program: "paplay", arg: "bell"},
		{goos: "darwin", typ: domain.TypeSound, program: "afplay", arg: "Sosumi"},
		{goos: "windows", typ: domain.TypeVibrate, program: "powershell.exe", arg: "beep(200"},
	}

	for _, tt := range tests {
		command, err := commandFor(tt.goos, tt.typ)
		require.NoError(t, err, tt.goos)
		require.Equal(t, tt.program, command[0], tt.goos)
		require.Contains(t, command[len(command)-1], tt.arg, tt.goos)
	}

	_, err := commandFor("plan9", domain.TypeSound)
	require.ErrorIs(t, err, ErrUnsupportedOS)
}

// TestCommandPlayer_Play starts the command for the event type and reports start failures.
func TestCommandPlayer_Play(t *testing.T) {
	t.Parallel()

	var started []string

	player := &CommandPlayer{
		goos: "linux",
		start: func(_ context.Context, name string, args ...string) error {
			started = append(append(started, name), args...)

			return nil
		},
		fallback: LogPlayer{},
	}

	event := domain.Event{ID: "a1", Type: domain.TypeSound, SenderID: "device_b"}

	require.NoError(t, player.Play(context.Background(), event))
	require.Equal(t, "paplay", started[0])

	player.start = func(context.Context, string, ...string) error { return errTestStart }
	require.ErrorIs(t, player.Play(context.Background(), event), errTestStart)

	player.goos = "plan9"
	require.ErrorIs(t, player.Play(context.Background(), event), ErrUnsupportedOS)
}
