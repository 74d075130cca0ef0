package wake

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"voice-client/internal/application"
)

const (
	defaultQueueSize  = 64
	eventQueueSize    = 16
	defaultRollingDur = 2 * time.Second
)

type Config struct {
	SampleRate    int
	Channels      int
	VAD           VADConfig
	RollingBuffer time.Duration
	KeywordToken  string
	QueueSize     int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.RollingBuffer <= 0 {
		c.RollingBuffer = defaultRollingDur
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	c.VAD.SampleRate = c.SampleRate
	c.VAD.Channels = c.Channels
	return c
}

// Service runs voice activity detection and keyword spotting on its own
// goroutine. Audio fed while the worker is busy is dropped once the queue fills.
type Service struct {
	cfg     Config
	vad     *EnergyVAD
	spotter Spotter
	rolling *rollingBuffer
	logger  *slog.Logger

	in     chan []int16
	events chan application.WakeEvent

	running   atomic.Bool
	dropped   atomic.Int64
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewService builds a wake service. spotter may be nil, in which case only voice
// activity is reported.
func NewService(cfg Config, spotter Spotter, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	limit := int(int64(cfg.SampleRate)*int64(cfg.RollingBuffer)/int64(time.Second)) * cfg.Channels

	return &Service{
		cfg:     cfg,
		vad:     NewEnergyVAD(cfg.VAD),
		spotter: spotter,
		rolling: newRollingBuffer(limit),
		logger:  logger,
		in:      make(chan []int16, cfg.QueueSize),
		events:  make(chan application.WakeEvent, eventQueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.running.Store(true)
		go s.worker(ctx)
		s.logger.Info("wake service started",
			"sample_rate", s.cfg.SampleRate,
			"keyword", s.spotter != nil,
		)
	})
	return nil
}

func (s *Service) Running() bool { return s.running.Load() }

func (s *Service) Feed(pcm []int16) {
	if !s.running.Load() || len(pcm) == 0 {
		return
	}
	block := append([]int16(nil), pcm...)
	select {
	case s.in <- block:
	default:
		s.dropped.Add(1)
	}
}

func (s *Service) ReadRollingBuffer() []int16           { return s.rolling.Snapshot() }
func (s *Service) ClearRollingBuffer()                  { s.rolling.Clear() }
func (s *Service) Events() <-chan application.WakeEvent { return s.events }

// Dropped reports how many fed blocks were discarded because the worker lagged.
func (s *Service) Dropped() int64 { return s.dropped.Load() }

func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		wasRunning := s.running.Swap(false)
		close(s.stop)
		if wasRunning {
			<-s.done
		}
		if s.spotter != nil {
			err = s.spotter.Close()
		}
		if n := s.dropped.Load(); n > 0 {
			s.logger.Warn("wake service dropped audio", "blocks", n)
		}
	})
	return err
}

func (s *Service) worker(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			return
		case <-s.stop:
			return
		case pcm := <-s.in:
			s.process(ctx, pcm)
		}
	}
}

func (s *Service) process(ctx context.Context, pcm []int16) {
	s.rolling.Write(pcm)

	if speaking, changed := s.vad.Process(pcm); changed {
		s.logger.Debug("voice activity", "active", speaking, "threshold", s.vad.Threshold())
		s.emit(ctx, application.WakeEvent{Kind: application.WakeVoiceActivity, Active: speaking})
	}

	if s.spotter == nil {
		return
	}
	hit, err := s.spotter.Detect(pcm)
	if err != nil {
		s.logger.Warn("keyword spotting failed", "error", err)
		return
	}
	if hit {
		s.logger.Info("wake word detected", "token", s.cfg.KeywordToken)
		s.emit(ctx, application.WakeEvent{Kind: application.WakeWordDetected, Token: s.cfg.KeywordToken})
	}
}

func (s *Service) emit(ctx context.Context, ev application.WakeEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	case <-s.stop:
	}
}
