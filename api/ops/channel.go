package ops

import (
	"context"
	"fmt"

	"github.com/GEMDevEng/GradientLab/api/model"
)

// Remote commands issued over the operational channel. The restart target
// is the browser process the Sentry Node extension runs in.
const (
	RestartCommand = "sudo systemctl restart chromium"
	PocTapCommand  = "sudo /home/gradient/sentry/poc_tap.sh"
)

// Channel runs a command on a node's host. Implementations return
// model.ErrRecoveryChannelUnavailable (wrapped) when the host cannot be
// reached at all, so the monitor can skip recovery and alert immediately.
type Channel interface {
	Run(ctx context.Context, addr, command string) (string, error)
}

// Unavailable is the channel used when no SSH key is configured. Every
// command fails as channel-unavailable, which downgrades recovery to
// alert-only.
type Unavailable struct{}

func (Unavailable) Run(ctx context.Context, addr, command string) (string, error) {
	return "", fmt.Errorf("%w: no operational channel configured", model.ErrRecoveryChannelUnavailable)
}
