package effect

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/oshokin/shared-alarm/internal/config"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
)

var (
	// ErrUnsupportedOS indicates the current OS has no alarm command.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// errUnknownEffect is returned for effect names other than log and command.
	errUnknownEffect = errors.New("unknown effect")
)

// Player renders an alarm on the local device.
type Player interface {
	Play(ctx context.Context, event domain.Event) error
}

// New returns the player selected by name.
func New(name string) (Player, error) {
	switch name {
	case config.EffectLog, "":
		return LogPlayer{}, nil
	case config.EffectCommand:
		return NewCommandPlayer(), nil
	default:
		return nil, fmt.Errorf("%q: %w", name, errUnknownEffect)
	}
}

// LogPlayer only logs the alarm.
type LogPlayer struct{}

// Play logs the alarm at warn level so it stands out in the console.
func (LogPlayer) Play(ctx context.Context, event domain.Event) error {
	logger.WarnKV(ctx, "ALARM",
		"type", event.Type,
		"message", event.Message,
		"sender_id", event.SenderID,
		"alarm_id", event.ID,
	)

	return nil
}

// starter launches a process without waiting for it.
type starter func(ctx context.Context, name string, args ...string) error

// CommandPlayer plays alarms with built-in OS tools:
// - Linux:   `paplay` with the freedesktop alarm sound, or the bell sound for vibrate
// - macOS:   `afplay` with a system sound
// - Windows: `powershell.exe` console beeps
// The commands are started asynchronously; the OS takes over the rest.
type CommandPlayer struct {
	// goos selects the command table.
	goos string
	// start launches the command.
	start starter
	// fallback is used when the OS has no command.
	fallback Player
}

// NewCommandPlayer creates a player for the running OS.
func NewCommandPlayer() *CommandPlayer {
	return &CommandPlayer{
		goos:     runtime.GOOS,
		start:    startCommand,
		fallback: LogPlayer{},
	}
}

// Play logs the alarm and starts the OS command for its type.
func (p *CommandPlayer) Play(ctx context.Context, event domain.Event) error {
	if err := p.fallback.Play(ctx, event); err != nil {
		return err
	}

	command, err := commandFor(p.goos, event.Type)
	if err != nil {
		return err
	}

	if err = p.start(ctx, command[0], command[1:]...); err != nil {
		return fmt.Errorf("start %s: %w", command[0], err)
	}

	return nil
}

// commandFor returns the command line that renders alarmType on goos.
func commandFor(goos string, alarmType domain.Type) ([]string, error) {
	vibrate := alarmType == domain.TypeVibrate

	switch osName := strings.ToLower(goos); {
	case strings.Contains(osName, "linux"):
		sound := "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"
		if vibrate {
			sound = "/usr/share/sounds/freedesktop/stereo/bell.oga"
		}

		return []string{"paplay", sound}, nil
	case strings.Contains(osName, "darwin"):
		sound := "/System/Library/Sounds/Sosumi.aiff"
		if vibrate {
			sound = "/System/Library/Sounds/Tink.aiff"
		}

		return []string{"afplay", sound}, nil
	case strings.Contains(osName, "windows"):
		script := "[console]::beep(880,700);[console]::beep(660,700);[console]::beep(880,700)"
		if vibrate {
			script = "[console]::beep(200,150);[console]::beep(200,150);[console]::beep(200,150)"
		}

		return []string{"powershell.exe", "-NoProfile", "-Command", script}, nil
	default:
		return nil, fmt.Errorf("unsupported operating system: %s: %w", goos, ErrUnsupportedOS)
	}
}

// startCommand starts the process and reaps it in the background.
func startCommand(ctx context.Context, name string, args ...string) error {
	//nolint:gosec // Command lines come from the fixed table in commandFor.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		_ = cmd.Wait()
	}()

	return nil
}
