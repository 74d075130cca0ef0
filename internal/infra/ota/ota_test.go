package ota_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matryer/is"

	"voice-client/internal/domain"
	"voice-client/internal/infra/ota"
)

var identity = domain.DeviceIdentity{
	MACAddress: "02:11:22:33:44:55",
	ClientID:   "3f1c2a9e-6d5b-4c1e-9a7f-0e2d4b6c8a10",
	BoardName:  "voice-client",
	Version:    "1.2.0",
}

func TestCheckVersionSendsDeviceHeaders(t *testing.T) {
	is := is.New(t)

	var (
		headers http.Header
		body    map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Write([]byte(`{
			"firmware": {"version": "1.3.0", "url": "https://example.com/fw.bin"},
			"websocket": {"url": "wss://chat.example.com/v1/", "token": "abc"},
			"server_time": {"timestamp": 1700000000000, "timezone_offset": 480}
		}`))
	}))
	defer srv.Close()

	c := ota.NewClient(ota.Config{VersionURL: srv.URL, Language: "en-US"}, identity)
	info, err := c.CheckVersion(context.Background())
	is.NoErr(err)

	is.Equal(headers.Get("Device-Id"), identity.MACAddress)
	is.Equal(headers.Get("Client-Id"), identity.ClientID)
	is.Equal(headers.Get("Accept-Language"), "en-US")
	is.Equal(headers.Get("User-Agent"), "voice-client/1.2.0")
	is.Equal(body["mac_address"], identity.MACAddress)

	is.Equal(info.FirmwareVersion, "1.3.0")
	is.Equal(info.WebSocketURL, "wss://chat.example.com/v1/")
	is.Equal(info.WebSocketToken, "abc")
	is.Equal(info.ServerTime, time.UnixMilli(1700000000000).UTC())
	is.True(!info.NeedsActivation())
}

func TestCheckVersionActivation(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"activation": {"code": "123456", "message": "Visit the console and enter 123456"}}`))
	}))
	defer srv.Close()

	info, err := ota.NewClient(ota.Config{VersionURL: srv.URL}, identity).CheckVersion(context.Background())
	is.NoErr(err)
	is.True(info.NeedsActivation())
	is.Equal(info.ActivationCode, "123456")
	is.Equal(info.ActivationMessage, "Visit the console and enter 123456")
}

func TestCheckVersionBadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"not json", http.StatusOK, "<html>"},
		{"empty object", http.StatusOK, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := ota.NewClient(ota.Config{VersionURL: srv.URL}, identity).CheckVersion(context.Background())
			if !errors.Is(err, ota.ErrBadResponse) {
				t.Errorf("CheckVersion() error = %v, want ErrBadResponse", err)
			}
		})
	}
}

func TestRequestBodyTemplate(t *testing.T) {
	c := ota.NewClient(ota.Config{BodyTemplate: `{"mac":"{mac}","board":"{board_name}","again":"{mac}"}`}, identity)
	want := `{"mac":"02:11:22:33:44:55","board":"voice-client","again":"02:11:22:33:44:55"}`
	if got := c.RequestBody(); got != want {
		t.Errorf("RequestBody() = %s, want %s", got, want)
	}
}

func TestConnectivity(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	addr := ln.Addr().String()

	up := ota.NewConnectivity("http://"+addr+"/ota/", time.Second)
	is.True(up.Reachable(context.Background()))

	ln.Close()
	is.True(!up.Reachable(context.Background()))

	is.True(ota.NewConnectivity("", time.Second).Reachable(context.Background()))
}
