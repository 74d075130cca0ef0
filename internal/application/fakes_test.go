package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"voice-client/internal/domain"
)

type closeLog struct {
	mu    sync.Mutex
	order []string
}

func (l *closeLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.order = append(l.order, name)
	l.mu.Unlock()
}

func (l *closeLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

type fakeTransport struct {
	mu       sync.Mutex
	inputs   [][]int16
	written  [][]int16
	volume   float64
	noInput  bool
	started  bool
	inRate   int
	outRate  int
	closeLog *closeLog
}

func (f *fakeTransport) Start(context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Stop() error { return nil }

func (f *fakeTransport) ReadInput() ([]int16, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil, false
	}
	pcm := f.inputs[0]
	f.inputs = f.inputs[1:]
	return pcm, true
}

func (f *fakeTransport) WriteOutput(pcm []int16) error {
	f.mu.Lock()
	f.written = append(f.written, pcm)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) push(pcm []int16) {
	f.mu.Lock()
	f.inputs = append(f.inputs, pcm)
	f.mu.Unlock()
}

func (f *fakeTransport) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func (f *fakeTransport) writtenBlocks() [][]int16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]int16(nil), f.written...)
}

func (f *fakeTransport) SetOutputVolume(v float64) { f.volume = v }
func (f *fakeTransport) HasInputDevice() bool      { return !f.noInput }
func (f *fakeTransport) Channels() int             { return 1 }
func (f *fakeTransport) Name() string              { return "fake" }

func (f *fakeTransport) InputFrameDuration() time.Duration { return 20 * time.Millisecond }

func (f *fakeTransport) InputSampleRate() int {
	if f.inRate == 0 {
		return 16000
	}
	return f.inRate
}

func (f *fakeTransport) OutputSampleRate() int {
	if f.outRate == 0 {
		return 24000
	}
	return f.outRate
}

func (f *fakeTransport) Close() error {
	f.closeLog.add("transport")
	return nil
}

type fakeProtocol struct {
	mu         sync.Mutex
	open       bool
	openErr    error
	openGate   chan struct{}
	opens      int
	closes     int
	listens    []domain.ListenMode
	stops      int
	aborts     []domain.AbortReason
	wakeTokens []string
	audio      [][]byte
	rate       int
	events     chan ChannelEvent
	closeLog   *closeLog
}

func newFakeProtocol() *fakeProtocol {
	return &fakeProtocol{events: make(chan ChannelEvent, 16)}
}

func (f *fakeProtocol) Start(context.Context) error { return nil }

func (f *fakeProtocol) OpenChannel(ctx context.Context) error {
	if f.openGate != nil {
		select {
		case <-f.openGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeProtocol) CloseChannel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.open = false
	return nil
}

func (f *fakeProtocol) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeProtocol) setOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

func (f *fakeProtocol) SendAudio(frame []byte) error {
	f.mu.Lock()
	f.audio = append(f.audio, frame)
	f.mu.Unlock()
	return nil
}

func (f *fakeProtocol) SendStartListening(_ context.Context, mode domain.ListenMode) error {
	f.mu.Lock()
	f.listens = append(f.listens, mode)
	f.mu.Unlock()
	return nil
}

func (f *fakeProtocol) SendStopListening(context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeProtocol) SendAbortSpeaking(_ context.Context, reason domain.AbortReason) error {
	f.mu.Lock()
	f.aborts = append(f.aborts, reason)
	f.mu.Unlock()
	return nil
}

func (f *fakeProtocol) SendWakeWordDetected(_ context.Context, token string) error {
	f.mu.Lock()
	f.wakeTokens = append(f.wakeTokens, token)
	f.mu.Unlock()
	return nil
}

func (f *fakeProtocol) NegotiatedSampleRate() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *fakeProtocol) Events() <-chan ChannelEvent { return f.events }

func (f *fakeProtocol) Close() error {
	f.closeLog.add("protocol")
	return nil
}

func (f *fakeProtocol) listenModes() []domain.ListenMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ListenMode(nil), f.listens...)
}

func (f *fakeProtocol) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.aborts)
}

type fakeWake struct {
	running  bool
	fed      [][]int16
	rolling  []int16
	clears   int
	events   chan WakeEvent
	closeLog *closeLog
}

func newFakeWake() *fakeWake {
	return &fakeWake{events: make(chan WakeEvent, 4)}
}

func (f *fakeWake) Start(context.Context) error {
	f.running = true
	return nil
}

func (f *fakeWake) Running() bool              { return f.running }
func (f *fakeWake) Feed(pcm []int16)           { f.fed = append(f.fed, pcm) }
func (f *fakeWake) ReadRollingBuffer() []int16 { return append([]int16(nil), f.rolling...) }
func (f *fakeWake) Events() <-chan WakeEvent   { return f.events }

func (f *fakeWake) ClearRollingBuffer() {
	f.rolling = nil
	f.clears++
}

func (f *fakeWake) Close() error {
	f.running = false
	f.closeLog.add("wake")
	return nil
}

// fakeEncoder emits one frame per call carrying the sample count.
type fakeEncoder struct {
	resets   int
	closeLog *closeLog
}

func (f *fakeEncoder) Encode(pcm []int16) ([][]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	n := len(pcm)
	return [][]byte{{byte(n >> 8), byte(n)}}, nil
}

func (f *fakeEncoder) Reset() error {
	f.resets++
	return nil
}

func (f *fakeEncoder) Close() error {
	f.closeLog.add("encoder")
	return nil
}

// fakeDecoder emits one 60ms block at its rate per frame.
type fakeDecoder struct {
	rate     int
	resets   int
	fail     bool
	closeLog *closeLog
}

func (f *fakeDecoder) Decode([]byte) ([]int16, error) {
	if f.fail {
		return nil, errors.New("corrupt frame")
	}
	return make([]int16, f.rate*60/1000), nil
}

func (f *fakeDecoder) Reset() error {
	f.resets++
	return nil
}

func (f *fakeDecoder) SampleRate() int { return f.rate }

func (f *fakeDecoder) Close() error {
	f.closeLog.add("decoder")
	return nil
}

type fakeResampler struct {
	from, to int
}

func (f *fakeResampler) Configure(from, to int) {
	f.from = from
	f.to = to
}

func (f *fakeResampler) Process(pcm []int16) []int16 {
	if f.from == 0 || f.from == f.to {
		return pcm
	}
	return make([]int16, len(pcm)*f.to/f.from)
}

func (f *fakeResampler) InputSampleRate() int  { return f.from }
func (f *fakeResampler) OutputSampleRate() int { return f.to }

type versionResult struct {
	info *domain.VersionInfo
	err  error
}

type fakeVersions struct {
	results []versionResult
	calls   int
}

func (f *fakeVersions) CheckVersion(context.Context) (*domain.VersionInfo, error) {
	f.calls++
	if len(f.results) == 0 {
		return &domain.VersionInfo{FirmwareVersion: "1.0.0"}, nil
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.info, r.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) count(message string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.messages {
		if m == message {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type recordingDisplay struct {
	NoopDisplay
	mu       sync.Mutex
	states   []domain.DeviceState
	chat     map[domain.ChatRole]string
	emotion  string
	controls int
}

func (d *recordingDisplay) OnDeviceState(state domain.DeviceState) {
	d.mu.Lock()
	d.states = append(d.states, state)
	d.mu.Unlock()
}

func (d *recordingDisplay) SetChatMessage(role domain.ChatRole, content string) {
	d.mu.Lock()
	if d.chat == nil {
		d.chat = map[domain.ChatRole]string{}
	}
	d.chat[role] = content
	d.mu.Unlock()
}

func (d *recordingDisplay) SetEmotion(emotion string) {
	d.mu.Lock()
	d.emotion = emotion
	d.mu.Unlock()
}

func (d *recordingDisplay) OnControl(json.RawMessage) {
	d.mu.Lock()
	d.controls++
	d.mu.Unlock()
}

func (d *recordingDisplay) stateLog() []domain.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DeviceState(nil), d.states...)
}

type deniedPermissions []string

func (p deniedPermissions) Check(context.Context) []string { return p }

type recordingClipboard struct {
	texts []string
}

func (c *recordingClipboard) WriteText(text string) error {
	c.texts = append(c.texts, text)
	return nil
}

type harness struct {
	session   *Session
	transport *fakeTransport
	protocol  *fakeProtocol
	wake      *fakeWake
	encoder   *fakeEncoder
	decoders  []*fakeDecoder
	versions  *fakeVersions
	notifier  *recordingNotifier
	display   *recordingDisplay
	clipboard *recordingClipboard
	closeLog  *closeLog
	clock     time.Time
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, cfg SessionConfig) *harness {
	t.Helper()

	log := &closeLog{}
	h := &harness{
		transport: &fakeTransport{closeLog: log},
		protocol:  newFakeProtocol(),
		wake:      newFakeWake(),
		encoder:   &fakeEncoder{closeLog: log},
		versions:  &fakeVersions{},
		notifier:  &recordingNotifier{},
		display:   &recordingDisplay{},
		clipboard: &recordingClipboard{},
		closeLog:  log,
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.protocol.closeLog = log
	h.wake.closeLog = log

	deps := SessionDeps{
		Transport: h.transport,
		Protocol:  h.protocol,
		Wake:      h.wake,
		NewEncoder: func(int, int, time.Duration) (Encoder, error) {
			return h.encoder, nil
		},
		NewDecoder: func(rate, _ int, _ time.Duration) (Decoder, error) {
			d := &fakeDecoder{rate: rate, closeLog: log}
			h.decoders = append(h.decoders, d)
			return d, nil
		},
		NewResampler: func() Resampler { return &fakeResampler{} },
		Versions:     h.versions,
		Display:      h.display,
		Notifier:     h.notifier,
		Clipboard:    h.clipboard,
	}

	h.session = NewSession(cfg, deps, testLogger())
	h.session.now = func() time.Time { return h.clock }
	return h
}

// started runs the startup sequence and leaves the session Idle.
func (h *harness) started(t *testing.T) *harness {
	t.Helper()
	if err := h.session.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.session.state != domain.StateIdle {
		t.Fatalf("expected idle after start, got %s", h.session.state)
	}
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *harness) decoder() *fakeDecoder {
	return h.decoders[len(h.decoders)-1]
}

func (h *harness) control(t *testing.T, raw string) {
	t.Helper()
	msg, err := domain.ParseControlMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	h.session.handleChannelEvent(context.Background(), ChannelEvent{Kind: ChannelControl, Control: msg})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func wakeConfig(mode domain.BreakMode) SessionConfig {
	return SessionConfig{EnableWake: true, BreakMode: mode}
}
