package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"voice-client/internal/domain"
)

const (
	// abortSilenceWindow is how long captured audio is held back after an abort.
	abortSilenceWindow = 1000 * time.Millisecond

	DefaultTick                  = 16 * time.Millisecond
	DefaultOutboxSize            = 64
	DefaultMaxActivationAttempts = 100
	DefaultActivationRetryDelay  = 3 * time.Second

	connectivityPollInterval = time.Second
	requestQueueSize         = 16
)

const (
	statusStandby     = "Standby"
	statusConnecting  = "Connecting..."
	statusListening   = "Listening..."
	statusSpeaking    = "Speaking..."
	statusStarting    = "Starting..."
	statusActivation  = "Activation"
	statusError       = "Error"
	statusNoInternet  = "Waiting for network..."
	statusLoadingWake = "Loading wake word model..."
	statusNoMic       = "Microphone not found"

	noticeConnectFailed    = "Failed to connect to the server, please try again later"
	noticeConnectionClosed = "Connection to the server was closed"
	noticeActivationCopied = "Activation code copied to clipboard"
	messagePermission      = "Permission request failed"
	messageActivation      = "Activation failed, please restart and try again"
)

type SessionConfig struct {
	ServerInputSampleRate int
	OpusFrameDuration     time.Duration
	BreakMode             domain.BreakMode
	EnableWake            bool
	OutputVolume          float64

	Tick                  time.Duration
	OutboxSize            int
	MaxActivationAttempts int
	ActivationRetryDelay  time.Duration
}

func (c *SessionConfig) setDefaults() {
	if c.ServerInputSampleRate == 0 {
		c.ServerInputSampleRate = 16000
	}
	if c.OpusFrameDuration == 0 {
		c.OpusFrameDuration = 60 * time.Millisecond
	}
	if c.BreakMode == "" {
		c.BreakMode = domain.BreakNone
	}
	if c.Tick == 0 {
		c.Tick = DefaultTick
	}
	if c.OutboxSize == 0 {
		c.OutboxSize = DefaultOutboxSize
	}
	if c.MaxActivationAttempts == 0 {
		c.MaxActivationAttempts = DefaultMaxActivationAttempts
	}
	if c.ActivationRetryDelay == 0 {
		c.ActivationRetryDelay = DefaultActivationRetryDelay
	}
}

// SessionDeps are the collaborators a Session drives. Wake may be nil when the
// wake service is disabled; the remaining optional ports fall back to no-ops.
type SessionDeps struct {
	Transport    CodecTransport
	Protocol     ChannelProtocol
	Wake         WakeService
	NewEncoder   EncoderFactory
	NewDecoder   DecoderFactory
	NewResampler func() Resampler
	Versions     VersionChecker
	Permissions  PermissionChecker
	Connectivity Connectivity
	Display      Display
	Notifier     Notifier
	Clipboard    Clipboard
}

// Session is the device orchestrator. All session state is owned by the goroutine
// running Run; other goroutines interact through the request methods and the
// atomic state view.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger
	now    func() time.Time

	transport    CodecTransport
	protocol     ChannelProtocol
	wake         WakeService
	newEncoder   EncoderFactory
	newDecoder   DecoderFactory
	newResampler func() Resampler
	versions     VersionChecker
	permissions  PermissionChecker
	connectivity Connectivity
	display      Display
	notifier     Notifier
	clipboard    Clipboard

	state         domain.DeviceState
	keepListening bool
	aborted       bool
	silenceUntil  time.Time
	voiceDetected bool
	protocolReady bool

	decodeSampleRate int
	failedDecodeRate int
	encoder          Encoder
	decoder          Decoder
	inputResampler   Resampler
	outputResampler  Resampler
	deferred         *DeferredBuffer
	outbox           *audioOutbox

	lastTick           time.Time
	lastNotice         string
	shownActivationTip string

	requests  chan func(context.Context)
	done      chan struct{}
	stateView atomic.Int32
	voiceView atomic.Bool
}

func NewSession(cfg SessionConfig, deps SessionDeps, logger *slog.Logger) *Session {
	cfg.setDefaults()

	s := &Session{
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		transport:    deps.Transport,
		protocol:     deps.Protocol,
		wake:         deps.Wake,
		newEncoder:   deps.NewEncoder,
		newDecoder:   deps.NewDecoder,
		newResampler: deps.NewResampler,
		versions:     deps.Versions,
		permissions:  deps.Permissions,
		connectivity: deps.Connectivity,
		display:      deps.Display,
		notifier:     deps.Notifier,
		clipboard:    deps.Clipboard,
		outbox:       newAudioOutbox(cfg.OutboxSize),
		requests:     make(chan func(context.Context), requestQueueSize),
		done:         make(chan struct{}),
	}

	if s.permissions == nil {
		s.permissions = AllowAllPermissions{}
	}
	if s.connectivity == nil {
		s.connectivity = AlwaysReachable{}
	}
	if s.display == nil {
		s.display = NoopDisplay{}
	}
	if s.notifier == nil {
		s.notifier = &NoopNotifier{}
	}
	if s.clipboard == nil {
		s.clipboard = NoopClipboard{}
	}
	if !cfg.EnableWake {
		s.wake = nil
	}

	return s
}

// State returns the current device state. Safe for concurrent use.
func (s *Session) State() domain.DeviceState {
	return domain.DeviceState(s.stateView.Load())
}

func (s *Session) IsReady() bool {
	return s.State().IsReady()
}

func (s *Session) VoiceDetected() bool {
	return s.voiceView.Load()
}

// Run performs the startup sequence and then drives the session loop until ctx
// is cancelled or startup fails. Every resource is released before it returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.dispose()

	if err := s.start(ctx); err != nil {
		return err
	}

	return s.loop(ctx)
}

func (s *Session) start(ctx context.Context) error {
	s.setState(domain.StateStarting)

	if denied := s.permissions.Check(ctx); len(denied) > 0 {
		for _, name := range denied {
			s.notify(ctx, fmt.Sprintf("Permission %q was denied", name))
		}
		s.setState(domain.StateError)
		s.display.SetChatMessage(domain.RoleSystem, messagePermission)
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.Join(denied, ", "))
	}

	if err := s.waitForNetwork(ctx); err != nil {
		return err
	}

	info, err := s.checkVersion(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.setState(domain.StateError)
		s.display.SetChatMessage(domain.RoleSystem, messageActivation)
		return err
	}
	s.applyEndpoint(info)

	s.setState(domain.StateStarting)
	s.display.SetChatMessage(domain.RoleSystem, "")

	if s.wake != nil {
		s.display.SetStatus(statusLoadingWake)
		s.deferred = NewDeferredBuffer()
		if err := s.wake.Start(ctx); err != nil {
			s.setState(domain.StateError)
			return fmt.Errorf("starting wake service: %w", err)
		}
	}

	if err := s.initAudio(ctx); err != nil {
		s.setState(domain.StateError)
		return err
	}
	if !s.transport.HasInputDevice() {
		s.setState(domain.StateError)
		s.display.SetStatus(statusNoMic)
		return ErrNoInputDevice
	}

	if err := s.protocol.Start(ctx); err != nil {
		s.setState(domain.StateError)
		return fmt.Errorf("starting protocol: %w", err)
	}
	s.protocolReady = true

	if err := s.display.Start(); err != nil {
		s.logger.Warn("starting display", "error", err)
	}

	s.setState(domain.StateIdle)
	return nil
}

func (s *Session) initAudio(ctx context.Context) error {
	inputRate := s.transport.InputSampleRate()
	outputRate := s.transport.OutputSampleRate()
	channels := s.transport.Channels()

	var err error
	s.decodeSampleRate = outputRate
	s.decoder, err = s.newDecoder(outputRate, 1, s.cfg.OpusFrameDuration)
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}

	s.encoder, err = s.newEncoder(s.cfg.ServerInputSampleRate, channels, s.cfg.OpusFrameDuration)
	if err != nil {
		return fmt.Errorf("creating encoder: %w", err)
	}

	s.inputResampler = s.newResampler()
	s.inputResampler.Configure(inputRate, s.cfg.ServerInputSampleRate)

	if s.cfg.OutputVolume > 0 {
		s.transport.SetOutputVolume(s.cfg.OutputVolume)
	}

	if err := s.transport.Start(ctx); err != nil {
		return fmt.Errorf("starting audio transport %s: %w", s.transport.Name(), err)
	}

	s.logger.Info("audio initialized",
		"transport", s.transport.Name(),
		"input_rate", inputRate,
		"output_rate", outputRate,
		"server_input_rate", s.cfg.ServerInputSampleRate,
	)
	return nil
}

func (s *Session) applyEndpoint(info *domain.VersionInfo) {
	if info == nil || info.WebSocketURL == "" {
		return
	}
	if o, ok := s.protocol.(EndpointOverrider); ok {
		s.logger.Info("using websocket endpoint from version check", "url", info.WebSocketURL)
		o.SetEndpoint(info.WebSocketURL, info.WebSocketToken)
	}
}

func (s *Session) waitForNetwork(ctx context.Context) error {
	if s.connectivity.Reachable(ctx) {
		return nil
	}

	s.display.SetStatus(statusNoInternet)
	for !s.connectivity.Reachable(ctx) {
		if err := s.wait(ctx, connectivityPollInterval); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	sendCtx, stopSender := context.WithCancel(ctx)
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		s.outbox.Run(sendCtx, s.protocol.SendAudio, s.logger)
	}()
	defer func() {
		stopSender()
		<-senderDone
	}()

	channelEvents := s.protocol.Events()
	var wakeEvents <-chan WakeEvent
	if s.wake != nil {
		wakeEvents = s.wake.Events()
	}

	s.lastTick = s.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		case req := <-s.requests:
			req(ctx)
		case ev, ok := <-channelEvents:
			if !ok {
				channelEvents = nil
				continue
			}
			s.handleChannelEvent(ctx, ev)
		case ev, ok := <-wakeEvents:
			if !ok {
				wakeEvents = nil
				continue
			}
			s.handleWakeEvent(ctx, ev)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	s.pullInput(ctx)
	s.checkProtocol(ctx)
}

func (s *Session) pullInput(ctx context.Context) {
	now := s.now()
	elapsed := now.Sub(s.lastTick)
	s.lastTick = now
	s.inputAudio(ctx, elapsed)
}

// wait sleeps for d while still serving queued requests, so that user actions
// such as dismissing activation work during startup delays.
func (s *Session) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case req := <-s.requests:
			req(ctx)
		}
	}
}

func (s *Session) submit(ctx context.Context, req func(context.Context)) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.requests <- req:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ToggleChatState starts a conversation from Idle, interrupts Speaking, and ends
// Listening.
func (s *Session) ToggleChatState(ctx context.Context) error {
	return s.submit(ctx, s.toggleChatState)
}

// StartListening begins a manual listening turn. In Activating it dismisses the
// activation prompt instead.
func (s *Session) StartListening(ctx context.Context) error {
	return s.submit(ctx, s.startListening)
}

func (s *Session) StopListening(ctx context.Context) error {
	return s.submit(ctx, s.stopListening)
}

func (s *Session) AbortSpeaking(ctx context.Context) error {
	return s.submit(ctx, func(ctx context.Context) {
		if s.state == domain.StateSpeaking {
			s.abortSpeaking(ctx, domain.AbortNone)
		}
	})
}

func (s *Session) toggleChatState(ctx context.Context) {
	switch s.state {
	case domain.StateIdle:
		if !s.openChannel(ctx) {
			return
		}
		s.keepListening = true
		if err := s.protocol.SendStartListening(ctx, domain.ListenAutoStop); err != nil {
			s.logger.Warn("sending start listening", "error", err)
		}
		s.setState(domain.StateListening)
	case domain.StateSpeaking:
		s.abortSpeaking(ctx, domain.AbortNone)
	case domain.StateListening:
		if err := s.protocol.CloseChannel(); err != nil {
			s.logger.Warn("closing channel", "error", err)
		}
		s.setState(domain.StateIdle)
	}
}

func (s *Session) startListening(ctx context.Context) {
	if s.state == domain.StateActivating {
		s.setState(domain.StateIdle)
		return
	}
	if !s.protocolReady {
		s.logger.Error("protocol not initialized")
		return
	}

	s.keepListening = false
	switch s.state {
	case domain.StateIdle:
		if !s.openChannel(ctx) {
			return
		}
		if err := s.protocol.SendStartListening(ctx, domain.ListenManualStop); err != nil {
			s.logger.Warn("sending start listening", "error", err)
		}
		s.setState(domain.StateListening)
	case domain.StateSpeaking:
		s.abortSpeaking(ctx, domain.AbortNone)
		if err := s.protocol.SendStartListening(ctx, domain.ListenManualStop); err != nil {
			s.logger.Warn("sending start listening", "error", err)
		}
		s.setState(domain.StateListening)
	}
}

func (s *Session) stopListening(ctx context.Context) {
	if s.state != domain.StateListening {
		return
	}
	if err := s.protocol.SendStopListening(ctx); err != nil {
		s.logger.Warn("sending stop listening", "error", err)
	}
	s.setState(domain.StateIdle)
}

func (s *Session) openChannel(ctx context.Context) bool {
	if !s.protocolReady {
		s.logger.Error("protocol not initialized")
		return false
	}
	if s.protocol.IsOpen() {
		return true
	}

	s.setState(domain.StateConnecting)
	if err := s.awaitOpen(ctx); err != nil {
		s.logger.Warn("opening audio channel", "error", err)
		s.setState(domain.StateIdle)
		s.notify(ctx, noticeConnectFailed)
		return false
	}
	return true
}

// awaitOpen opens the channel off the loop and keeps capture flowing to the
// wake word service until the handshake settles. Requests stay queued.
func (s *Session) awaitOpen(ctx context.Context) error {
	result := make(chan error, 1)
	go func() { result <- s.protocol.OpenChannel(ctx) }()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case err := <-result:
			return err
		case <-ticker.C:
			select {
			case err := <-result:
				return err
			default:
			}
			s.pullInput(ctx)
		}
	}
}

// abortSpeaking asks the server to stop the current Speaking turn. It sends at
// most one abort per turn; tts:start clears the guard.
func (s *Session) abortSpeaking(ctx context.Context, reason domain.AbortReason) {
	if s.aborted {
		return
	}
	s.logger.Info("abort speaking", "reason", reason)
	s.aborted = true
	s.silenceUntil = s.now().Add(abortSilenceWindow)
	if err := s.protocol.SendAbortSpeaking(ctx, reason); err != nil {
		s.logger.Warn("sending abort", "error", err)
	}
}

func (s *Session) checkProtocol(ctx context.Context) {
	if s.state != domain.StateListening && s.state != domain.StateSpeaking {
		return
	}
	if s.protocol.IsOpen() {
		return
	}
	s.setState(domain.StateIdle)
	s.notify(ctx, noticeConnectionClosed)
}

func (s *Session) setState(state domain.DeviceState) {
	if s.state == state {
		return
	}
	prev := s.state
	s.state = state
	s.stateView.Store(int32(state))
	s.lastNotice = ""
	s.logger.Info("device state changed", "from", prev, "to", state)

	if prev == domain.StateListening {
		if n := s.outbox.reset(); n > 0 {
			s.logger.Debug("discarded unsent audio", "frames", n)
		}
	}

	switch state {
	case domain.StateUnknown, domain.StateIdle:
		s.display.SetStatus(statusStandby)
		s.display.SetEmotion("sleep")
	case domain.StateConnecting:
		s.display.SetStatus(statusConnecting)
		s.display.SetChatMessage(domain.RoleSystem, "")
		s.display.SetEmotion("yawn")
	case domain.StateListening:
		s.display.SetStatus(statusListening)
		s.display.SetEmotion("neutral")
		s.resetCodec(s.decoder)
		s.resetCodec(s.encoder)
	case domain.StateSpeaking:
		s.display.SetStatus(statusSpeaking)
		s.resetCodec(s.decoder)
		if s.wake != nil && s.wake.Running() {
			s.wake.ClearRollingBuffer()
		}
	case domain.StateStarting:
		s.display.SetStatus(statusStarting)
		s.display.SetEmotion("loading")
	case domain.StateActivating:
		s.display.SetStatus(statusActivation)
		s.display.SetEmotion("activation")
	case domain.StateError:
		s.display.SetStatus(statusError)
		s.display.SetEmotion("error")
	}

	s.display.OnDeviceState(state)
}

type resetter interface {
	Reset() error
}

func (s *Session) resetCodec(c resetter) {
	if c == nil {
		return
	}
	if err := c.Reset(); err != nil {
		s.logger.Warn("resetting codec state", "error", err)
	}
}

// notify surfaces a user-facing notice. A repeat of the last notice is dropped
// until the state changes.
func (s *Session) notify(ctx context.Context, message string) {
	if message == s.lastNotice {
		return
	}
	s.lastNotice = message
	s.send(ctx, message)
}

func (s *Session) send(ctx context.Context, message string) {
	if err := s.notifier.Notify(ctx, message); err != nil {
		s.logger.Warn("sending notification", "error", err)
	}
}

// dispose releases resources in dependency order: wake service, channel, audio
// transport, then codecs.
func (s *Session) dispose() {
	if s.wake != nil {
		if err := s.wake.Close(); err != nil {
			s.logger.Warn("closing wake service", "error", err)
		}
	}
	if s.protocol != nil {
		if err := s.protocol.Close(); err != nil {
			s.logger.Warn("closing protocol", "error", err)
		}
	}
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.logger.Warn("closing audio transport", "error", err)
		}
	}
	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			s.logger.Warn("closing encoder", "error", err)
		}
	}
	if s.decoder != nil {
		if err := s.decoder.Close(); err != nil {
			s.logger.Warn("closing decoder", "error", err)
		}
	}
	s.inputResampler = nil
	s.outputResampler = nil
	if err := s.display.Close(); err != nil {
		s.logger.Warn("closing display", "error", err)
	}
}
