package pdf

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ToolStatus is the cached outcome of the availability probe.
type ToolStatus struct {
	Available  bool   `json:"available"`
	Executable string `json:"executable,omitempty"`
	Version    string `json:"version,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ToolProbe checks once per process lifetime that Ghostscript can be invoked,
// falling back to the platform's alternate executable name.
type ToolProbe struct {
	primary   string
	alternate string
	runner    ProcessRunner
	logger    *zap.Logger

	once   sync.Once
	status ToolStatus
}

// NewToolProbe builds a probe. A non-empty toolPath overrides the platform
// executable and disables the alternate name.
func NewToolProbe(platform Platform, toolPath string, runner ProcessRunner, logger *zap.Logger) *ToolProbe {
	if logger == nil {
		logger = zap.NewNop()
	}

	primary, alternate := platform.Executable, platform.AlternateExecutable
	if toolPath != "" {
		primary, alternate = toolPath, ""
	}

	return &ToolProbe{
		primary:   primary,
		alternate: alternate,
		runner:    runner,
		logger:    logger,
	}
}

// Probe returns the cached status, running the version check on first use.
// Concurrent first callers block until the single probe completes.
func (p *ToolProbe) Probe() ToolStatus {
	p.once.Do(func() {
		p.status = p.check()
	})
	return p.status
}

func (p *ToolProbe) check() ToolStatus {
	version, err := p.version(p.primary)
	if err == nil {
		p.logger.Info("ghostscript available",
			zap.String("executable", p.primary),
			zap.String("version", version))
		return ToolStatus{Available: true, Executable: p.primary, Version: version}
	}

	if p.alternate == "" {
		p.logger.Warn("ghostscript not available", zap.String("executable", p.primary), zap.Error(err))
		return ToolStatus{Reason: fmt.Sprintf("%s: %v", p.primary, err)}
	}

	p.logger.Info("primary ghostscript executable failed, trying alternate",
		zap.String("primary", p.primary),
		zap.String("alternate", p.alternate),
		zap.Error(err))

	altVersion, altErr := p.version(p.alternate)
	if altErr == nil {
		p.logger.Info("ghostscript available under alternate name",
			zap.String("executable", p.alternate),
			zap.String("version", altVersion))
		return ToolStatus{Available: true, Executable: p.alternate, Version: altVersion}
	}

	p.logger.Warn("ghostscript not available",
		zap.String("primary", p.primary),
		zap.String("alternate", p.alternate),
		zap.Error(altErr))
	return ToolStatus{Reason: fmt.Sprintf("%s: %v; %s: %v", p.primary, err, p.alternate, altErr)}
}

func (p *ToolProbe) version(executable string) (string, error) {
	out, err := p.runner.Run(NewInvocation(executable, []string{"--version"}, ProbeTimeout))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

// unavailableError builds the error carried by results when the probe failed.
func (s ToolStatus) unavailableError() *CompressionError {
	return newCompressionError(KindToolUnavailable, "probe", fmt.Errorf("%w: %s", ErrToolUnavailable, s.Reason))
}
