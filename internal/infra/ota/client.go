package ota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-client/internal/domain"
)

// DefaultBodyTemplate is posted when no template is configured. {mac} and
// {board_name} are substituted before sending.
const DefaultBodyTemplate = `{"version":2,"language":"zh-CN","mac_address":"{mac}","board":{"type":"{board_name}","name":"{board_name}","mac":"{mac}"},"application":{"name":"voice-client","version":"1.0.0"}}`

type Config struct {
	VersionURL   string
	Language     string
	BodyTemplate string
	Timeout      time.Duration
}

// Client queries the version endpoint that reports firmware, activation state
// and the conversation server address for this device.
type Client struct {
	cfg        Config
	identity   domain.DeviceIdentity
	httpClient *http.Client
}

func NewClient(cfg Config, identity domain.DeviceIdentity) *Client {
	if cfg.Language == "" {
		cfg.Language = "zh-CN"
	}
	if cfg.BodyTemplate == "" {
		cfg.BodyTemplate = DefaultBodyTemplate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		cfg:        cfg,
		identity:   identity,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// RequestBody renders the body template for this device.
func (c *Client) RequestBody() string {
	r := strings.NewReplacer(
		"{mac}", c.identity.MACAddress,
		"{board_name}", c.identity.BoardName,
	)
	return r.Replace(c.cfg.BodyTemplate)
}

func (c *Client) CheckVersion(ctx context.Context) (*domain.VersionInfo, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.cfg.VersionURL,
		bytes.NewBufferString(c.RequestBody()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Device-Id", c.identity.MACAddress)
	req.Header.Set("Client-Id", c.identity.ClientID)
	req.Header.Set("Accept-Language", c.cfg.Language)
	req.Header.Set("User-Agent", c.identity.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseVersionResponse(body)
}

type versionResponse struct {
	Firmware *struct {
		Version string `json:"version"`
		URL     string `json:"url"`
	} `json:"firmware"`
	Activation *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"activation"`
	WebSocket *struct {
		URL   string `json:"url"`
		Token string `json:"token"`
	} `json:"websocket"`
	ServerTime *struct {
		Timestamp      int64 `json:"timestamp"`
		TimezoneOffset int   `json:"timezone_offset"`
	} `json:"server_time"`
}

func parseVersionResponse(body []byte) (*domain.VersionInfo, error) {
	var resp versionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if resp.Firmware == nil && resp.Activation == nil && resp.WebSocket == nil {
		return nil, fmt.Errorf("%w: no firmware, activation or websocket section", ErrBadResponse)
	}

	info := &domain.VersionInfo{}
	if f := resp.Firmware; f != nil {
		info.FirmwareVersion = f.Version
		info.FirmwareURL = f.URL
	}
	if a := resp.Activation; a != nil {
		info.ActivationCode = a.Code
		info.ActivationMessage = a.Message
	}
	if ws := resp.WebSocket; ws != nil {
		info.WebSocketURL = ws.URL
		info.WebSocketToken = ws.Token
	}
	if st := resp.ServerTime; st != nil && st.Timestamp > 0 {
		info.ServerTime = time.UnixMilli(st.Timestamp).UTC()
	}
	return info, nil
}
