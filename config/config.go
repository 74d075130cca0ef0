package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	Wake     WakeConfig     `yaml:"wake"`
	OTA      OTAConfig      `yaml:"ota"`
	Session  SessionConfig  `yaml:"session"`
	Display  DisplayConfig  `yaml:"display"`
	Control  ControlConfig  `yaml:"control"`
	Pushover PushoverConfig `yaml:"pushover"`
	StateDir string         `yaml:"state_dir"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	WebSocketURL    string `yaml:"websocket_url"`
	AccessToken     string `yaml:"access_token"`
	ProtocolVersion int    `yaml:"protocol_version"`
}

type AudioConfig struct {
	Backend               string  `yaml:"backend"`
	InputSampleRate       int     `yaml:"input_sample_rate"`
	OutputSampleRate      int     `yaml:"output_sample_rate"`
	ServerInputSampleRate int     `yaml:"server_input_sample_rate"`
	Channels              int     `yaml:"channels"`
	InputFrameMS          int     `yaml:"input_frame_ms"`
	OpusFrameMS           int     `yaml:"opus_frame_ms"`
	InputFile             string  `yaml:"input_file"`
	OutputFile            string  `yaml:"output_file"`
	OutputVolume          float64 `yaml:"output_volume"`
}

type WakeConfig struct {
	Enabled          bool    `yaml:"enabled"`
	BreakMode        string  `yaml:"break_mode"`
	VADThreshold     float64 `yaml:"vad_threshold"`
	VADMinSpeechMS   int     `yaml:"vad_min_speech_ms"`
	VADMinSilenceMS  int     `yaml:"vad_min_silence_ms"`
	RollingBufferMS  int     `yaml:"rolling_buffer_ms"`
	KeywordModel     string  `yaml:"keyword_model"`
	KeywordToken     string  `yaml:"keyword_token"`
	KeywordThreshold float64 `yaml:"keyword_threshold"`
	ONNXLibrary      string  `yaml:"onnx_library"`
}

type OTAConfig struct {
	VersionURL   string        `yaml:"version_url"`
	BoardName    string        `yaml:"board_name"`
	Version      string        `yaml:"version"`
	Language     string        `yaml:"language"`
	BodyTemplate string        `yaml:"body_template"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type SessionConfig struct {
	Tick       time.Duration `yaml:"tick"`
	OutboxSize int           `yaml:"outbox_size"`
}

type DisplayConfig struct {
	Mode string `yaml:"mode"`
}

type ControlConfig struct {
	Enabled   bool   `yaml:"enabled"`
	HTTPAddr  string `yaml:"http_addr"`
	AuthToken string `yaml:"auth_token"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.ProtocolVersion == 0 {
		c.Server.ProtocolVersion = 1
	}
	if c.Audio.Backend == "" {
		c.Audio.Backend = "portaudio"
	}
	if c.Audio.InputSampleRate == 0 {
		c.Audio.InputSampleRate = 16000
	}
	if c.Audio.OutputSampleRate == 0 {
		c.Audio.OutputSampleRate = 24000
	}
	if c.Audio.ServerInputSampleRate == 0 {
		c.Audio.ServerInputSampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.InputFrameMS == 0 {
		c.Audio.InputFrameMS = 20
	}
	if c.Audio.OpusFrameMS == 0 {
		c.Audio.OpusFrameMS = 60
	}
	if c.Audio.OutputVolume == 0 {
		c.Audio.OutputVolume = 1
	}
	if c.Wake.BreakMode == "" {
		c.Wake.BreakMode = "none"
	}
	if c.Wake.VADThreshold == 0 {
		c.Wake.VADThreshold = 500
	}
	if c.Wake.VADMinSpeechMS == 0 {
		c.Wake.VADMinSpeechMS = 100
	}
	if c.Wake.VADMinSilenceMS == 0 {
		c.Wake.VADMinSilenceMS = 500
	}
	if c.Wake.RollingBufferMS == 0 {
		c.Wake.RollingBufferMS = 2000
	}
	if c.Wake.KeywordToken == "" {
		c.Wake.KeywordToken = "hello"
	}
	if c.Wake.KeywordThreshold == 0 {
		c.Wake.KeywordThreshold = 0.5
	}
	if c.OTA.BoardName == "" {
		c.OTA.BoardName = "voice-client"
	}
	if c.OTA.Version == "" {
		c.OTA.Version = "1.0.0"
	}
	if c.OTA.Language == "" {
		c.OTA.Language = "zh-CN"
	}
	if c.OTA.MaxAttempts == 0 {
		c.OTA.MaxAttempts = 100
	}
	if c.OTA.RetryDelay == 0 {
		c.OTA.RetryDelay = 3 * time.Second
	}
	if c.Session.Tick == 0 {
		c.Session.Tick = 16 * time.Millisecond
	}
	if c.Session.OutboxSize == 0 {
		c.Session.OutboxSize = 64
	}
	if c.Display.Mode == "" {
		c.Display.Mode = "log"
	}
	if c.Control.HTTPAddr == "" {
		c.Control.HTTPAddr = "127.0.0.1:8080"
	}
	if c.StateDir == "" {
		c.StateDir = "./state"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Wake.BreakMode {
	case "none", "keyword", "vad", "free":
	default:
		return fmt.Errorf("invalid wake.break_mode %q", c.Wake.BreakMode)
	}
	switch c.Audio.Backend {
	case "portaudio", "file", "mock":
	default:
		return fmt.Errorf("invalid audio.backend %q", c.Audio.Backend)
	}
	switch c.Audio.OpusFrameMS {
	case 10, 20, 40, 60:
	default:
		return fmt.Errorf("invalid audio.opus_frame_ms %d", c.Audio.OpusFrameMS)
	}
	if c.Audio.Backend == "file" && c.Audio.InputFile == "" {
		return fmt.Errorf("audio.input_file is required for the file backend")
	}
	if c.Server.WebSocketURL == "" && c.OTA.VersionURL == "" {
		return fmt.Errorf("either server.websocket_url or ota.version_url must be set")
	}
	return nil
}
