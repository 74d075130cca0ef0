package application

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"voice-client/internal/domain"
	"voice-client/internal/infra"
)

var digits = regexp.MustCompile(`\d+`)

// checkVersion polls the version endpoint until it reports a device that needs
// no activation. Failures are retried quietly; a pending activation code moves
// the session to Activating while polling continues.
func (s *Session) checkVersion(ctx context.Context) (*domain.VersionInfo, error) {
	if s.versions == nil {
		return nil, nil
	}

	cfg := infra.FixedRetryConfig(s.cfg.MaxActivationAttempts, s.cfg.ActivationRetryDelay)
	cfg.Sleep = s.wait

	var (
		info    *domain.VersionInfo
		attempt int
	)
	err := infra.WithRetry(ctx, cfg, func() error {
		attempt++
		v, err := s.versions.CheckVersion(ctx)
		if err != nil {
			s.logger.Debug("version check failed", "attempt", attempt, "error", err)
			return err
		}
		if v.NeedsActivation() {
			s.showActivation(ctx, v)
			return errActivationPending
		}
		info = v
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrActivationFailed, attempt, err)
	}

	s.logger.Info("version check passed",
		"firmware", info.FirmwareVersion,
		"attempts", attempt,
	)
	return info, nil
}

// showActivation presents the activation prompt. The code is copied and
// announced once per distinct code.
func (s *Session) showActivation(ctx context.Context, v *domain.VersionInfo) {
	s.setState(domain.StateActivating)

	message := v.ActivationMessage
	if message == "" {
		message = v.ActivationCode
	}
	s.display.SetChatMessage(domain.RoleSystem, message)

	if v.ActivationCode == s.shownActivationTip {
		return
	}
	s.shownActivationTip = v.ActivationCode
	s.logger.Info("activation required", "code", v.ActivationCode)

	code := strings.Join(digits.FindAllString(v.ActivationCode, -1), "")
	if code == "" {
		code = v.ActivationCode
	}
	if err := s.clipboard.WriteText(code); err != nil {
		s.logger.Warn("copying activation code", "error", err)
		return
	}
	s.send(ctx, noticeActivationCopied)
}
