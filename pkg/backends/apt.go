// Package backends provides the host-facing implementations of the
// engine's collaborator interfaces: apt/dpkg for packages, the local
// filesystem for managed files, systemd for services.
package backends

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// AptManager manages Debian packages through dpkg-query and apt.
type AptManager struct{}

// NewAptManager creates the apt package backend.
func NewAptManager() *AptManager {
	return &AptManager{}
}

// QueryInstalled reports whether the named package is installed.
// dpkg-query exits non-zero for unknown packages, which is a valid
// "not installed" observation, not an error.
func (m *AptManager) QueryInstalled(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, "dpkg-query", "-W", "-f=${Status}", name)
	output, err := cmd.Output()
	if err != nil {
		return false, nil
	}
	return bytes.Contains(output, []byte("install ok installed")), nil
}

// Install installs the named package non-interactively.
func (m *AptManager) Install(ctx context.Context, name string) error {
	log.Info().Str("package", name).Msg("installing package")
	return m.run(ctx, "install", "-y", name)
}

// Remove removes the named package non-interactively.
func (m *AptManager) Remove(ctx context.Context, name string) error {
	log.Info().Str("package", name).Msg("removing package")
	return m.run(ctx, "remove", "-y", name)
}

// RefreshIndex refreshes the apt package index. The executor runs it
// after applying apt repository sources so the packages they carry
// become installable in the same run.
func (m *AptManager) RefreshIndex(ctx context.Context) error {
	log.Info().Msg("refreshing package index")
	return m.run(ctx, "update")
}

func (m *AptManager) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "apt-get", args...)
	cmd.Env = append(cmd.Environ(), "DEBIAN_FRONTEND=noninteractive")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("apt-get %s failed: %w (stderr: %s)", args[0], err, stderr.String())
	}
	return nil
}
