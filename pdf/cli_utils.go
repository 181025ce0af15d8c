package pdf

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// execCommandWithTimeout runs a short helper command with a timeout. Unlike
// Supervisor.Run it does not track exit and close separately, so it is only
// used for commands that do not produce files we read back.
func execCommandWithTimeout(timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output, fmt.Errorf("%s timed out after %v", name, timeout)
	}

	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return output, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return output, fmt.Errorf("%s failed: %w", name, err)
	}

	return output, nil
}
