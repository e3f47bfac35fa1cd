package backends

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/settlekit/settle/pkg/engine"
)

// SystemdManager manages service units through systemctl.
type SystemdManager struct{}

// NewSystemdManager creates the systemd service backend.
func NewSystemdManager() *SystemdManager {
	return &SystemdManager{}
}

// Status returns the enabled/running state of the named unit.
// systemctl is-active and is-enabled exit non-zero for inactive or
// disabled units; that is a valid observation. Only an unknown unit is
// a probe error.
func (m *SystemdManager) Status(ctx context.Context, name string) (engine.ServiceStatus, error) {
	var status engine.ServiceStatus

	activeOut, _ := exec.CommandContext(ctx, "systemctl", "is-active", name).Output()
	status.Running = strings.TrimSpace(string(activeOut)) == "active"

	enabledOut, _ := exec.CommandContext(ctx, "systemctl", "is-enabled", name).Output()
	switch strings.TrimSpace(string(enabledOut)) {
	case "enabled", "enabled-runtime", "static", "alias":
		status.Enabled = true
	case "":
		// is-enabled prints nothing for units systemd has never heard
		// of; confirm the unit file exists before trusting the status.
		if err := m.unitExists(ctx, name); err != nil {
			return status, err
		}
	}

	return status, nil
}

// EnableAndStart enables the unit so it comes up at boot and starts it
// now. systemctl enable --now does both atomically.
func (m *SystemdManager) EnableAndStart(ctx context.Context, name string) error {
	log.Info().Str("unit", name).Msg("enabling and starting service")
	cmd := exec.CommandContext(ctx, "systemctl", "enable", "--now", name)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl enable --now %s failed: %w (stderr: %s)", name, err, stderr.String())
	}
	return nil
}

func (m *SystemdManager) unitExists(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, "systemctl", "cat", name)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("unit %s not found: %w (stderr: %s)", name, err, stderr.String())
	}
	return nil
}
