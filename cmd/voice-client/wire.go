package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"voice-client/config"
	"voice-client/internal/application"
	"voice-client/internal/domain"
	"voice-client/internal/infra/audio"
	"voice-client/internal/infra/clipboard"
	"voice-client/internal/infra/control"
	"voice-client/internal/infra/display"
	"voice-client/internal/infra/identity"
	"voice-client/internal/infra/opus"
	"voice-client/internal/infra/ota"
	"voice-client/internal/infra/pushover"
	"voice-client/internal/infra/wake"
	"voice-client/internal/infra/websocket"
)

const notificationQueueSize = 16

type app struct {
	session  *application.Session
	notifier *application.AsyncNotifier
	control  *control.Server
	logger   *slog.Logger
}

func (a *app) close() {
	if a.control != nil {
		if err := a.control.Stop(); err != nil {
			a.logger.Warn("stopping control server", "error", err)
		}
	}
}

// displayNotifier is the subset of displays that can also surface notices.
type displayNotifier interface {
	application.Display
	application.Notifier
}

func build(cfg *config.Config, logger *slog.Logger) (*app, error) {
	id, err := loadIdentity(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("device identity", "device_id", id.MACAddress, "client_id", id.ClientID)

	breakMode, ok := domain.ParseBreakMode(cfg.Wake.BreakMode)
	if !ok {
		return nil, fmt.Errorf("invalid break mode %q", cfg.Wake.BreakMode)
	}

	disp := createDisplay(cfg.Display, logger)

	targets := application.Notifiers{disp}
	if cfg.Pushover.Enabled {
		targets = append(targets, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.OTA.BoardName))
	}
	notifier := application.NewAsyncNotifier(targets, notificationQueueSize, logger)

	protocol := websocket.NewProtocol(websocket.Config{
		URL:             cfg.Server.WebSocketURL,
		AccessToken:     cfg.Server.AccessToken,
		ProtocolVersion: cfg.Server.ProtocolVersion,
		DeviceID:        id.MACAddress,
		ClientID:        id.ClientID,
		SampleRate:      cfg.Audio.ServerInputSampleRate,
		Channels:        cfg.Audio.Channels,
		FrameDuration:   time.Duration(cfg.Audio.OpusFrameMS) * time.Millisecond,
	}, logger)

	deps := application.SessionDeps{
		Transport:    createTransport(cfg.Audio, logger),
		Protocol:     protocol,
		NewEncoder:   opus.EncoderFactory,
		NewDecoder:   opus.DecoderFactory,
		NewResampler: func() application.Resampler { return audio.NewLinearResampler() },
		Permissions:  identity.StoragePermissions{Dir: cfg.StateDir},
		Display:      disp,
		Notifier:     notifier,
		Clipboard:    clipboard.System{},
	}

	if cfg.OTA.VersionURL != "" {
		deps.Versions = newVersionClient(cfg, id)
		deps.Connectivity = ota.NewConnectivity(cfg.OTA.VersionURL, 2*time.Second)
	}

	if cfg.Wake.Enabled {
		svc, err := createWakeService(cfg, logger)
		if err != nil {
			return nil, err
		}
		deps.Wake = svc
	}

	session := application.NewSession(application.SessionConfig{
		ServerInputSampleRate: cfg.Audio.ServerInputSampleRate,
		OpusFrameDuration:     time.Duration(cfg.Audio.OpusFrameMS) * time.Millisecond,
		BreakMode:             breakMode,
		EnableWake:            cfg.Wake.Enabled,
		OutputVolume:          cfg.Audio.OutputVolume,
		Tick:                  cfg.Session.Tick,
		OutboxSize:            cfg.Session.OutboxSize,
		MaxActivationAttempts: cfg.OTA.MaxAttempts,
		ActivationRetryDelay:  cfg.OTA.RetryDelay,
	}, deps, logger)

	a := &app{session: session, notifier: notifier, logger: logger}
	if cfg.Control.Enabled {
		a.control = control.NewServer(cfg.Control.HTTPAddr, cfg.Control.AuthToken, session, logger)
	}
	return a, nil
}

func loadIdentity(cfg *config.Config) (domain.DeviceIdentity, error) {
	id, err := identity.NewStore(cfg.StateDir).Load(cfg.OTA.BoardName, cfg.OTA.Version)
	if err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("loading device identity: %w", err)
	}
	return id, nil
}

func newVersionClient(cfg *config.Config, id domain.DeviceIdentity) *ota.Client {
	return ota.NewClient(ota.Config{
		VersionURL:   cfg.OTA.VersionURL,
		Language:     cfg.OTA.Language,
		BodyTemplate: cfg.OTA.BodyTemplate,
	}, id)
}

func createTransport(cfg config.AudioConfig, logger *slog.Logger) application.CodecTransport {
	tc := audio.Config{
		InputSampleRate:  cfg.InputSampleRate,
		OutputSampleRate: cfg.OutputSampleRate,
		Channels:         cfg.Channels,
		FrameDuration:    time.Duration(cfg.InputFrameMS) * time.Millisecond,
	}

	switch cfg.Backend {
	case "file":
		return audio.NewFileTransport(tc, cfg.InputFile, cfg.OutputFile, logger)
	case "mock":
		return audio.NewMockTransport(tc)
	default:
		return audio.NewPortAudioTransport(tc, logger)
	}
}

func createDisplay(cfg config.DisplayConfig, logger *slog.Logger) displayNotifier {
	switch cfg.Mode {
	case "console":
		return display.NewConsoleDisplay(os.Stdout)
	default:
		return display.NewLogDisplay(logger)
	}
}

func createWakeService(cfg *config.Config, logger *slog.Logger) (*wake.Service, error) {
	var spotter wake.Spotter
	if cfg.Wake.KeywordModel != "" {
		s, err := wake.NewONNXSpotter(wake.SpotterConfig{
			ModelPath:   cfg.Wake.KeywordModel,
			LibraryPath: cfg.Wake.ONNXLibrary,
			SampleRate:  cfg.Audio.ServerInputSampleRate,
			Channels:    cfg.Audio.Channels,
			Threshold:   float32(cfg.Wake.KeywordThreshold),
		})
		if err != nil {
			return nil, fmt.Errorf("loading keyword model: %w", err)
		}
		spotter = s
	}

	return wake.NewService(wake.Config{
		SampleRate: cfg.Audio.ServerInputSampleRate,
		Channels:   cfg.Audio.Channels,
		VAD: wake.VADConfig{
			Threshold:  cfg.Wake.VADThreshold,
			MinSpeech:  time.Duration(cfg.Wake.VADMinSpeechMS) * time.Millisecond,
			MinSilence: time.Duration(cfg.Wake.VADMinSilenceMS) * time.Millisecond,
		},
		RollingBuffer: time.Duration(cfg.Wake.RollingBufferMS) * time.Millisecond,
		KeywordToken:  cfg.Wake.KeywordToken,
	}, spotter, logger), nil
}
