package main

import (
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
hosts:
  - name: localhost
    ports: [22, 9100]
  - name: dmaf5
    ports: [80]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(cfg.Hosts))
	}
	if cfg.Hosts[0].Name != "localhost" {
		t.Errorf("unexpected first host: %q", cfg.Hosts[0].Name)
	}
	if len(cfg.Hosts[0].Ports) != 2 || cfg.Hosts[0].Ports[1] != 9100 {
		t.Errorf("unexpected ports: %v", cfg.Hosts[0].Ports)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "{{{"},
		{"no hosts", "hosts: []"},
		{"host without name", "hosts:\n  - ports: [22]"},
		{"host without ports", "hosts:\n  - name: localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestCheckPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	if got := CheckPort("127.0.0.1", port, time.Second); got != StatusOpen {
		t.Errorf("expected open, got %s", got)
	}
}

func TestCheckPortClosed(t *testing.T) {
	// Grab a free port and close the listener so nothing answers on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if got := CheckPort("127.0.0.1", port, time.Second); got != StatusClosed {
		t.Errorf("expected closed, got %s", got)
	}
}

func TestScanHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	openPort := ln.Addr().(*net.TCPAddr).Port

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	closedPort := closed.Addr().(*net.TCPAddr).Port
	closed.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	host := HostSpec{Name: "localhost", Ports: []int{openPort, closedPort}}

	if got := ScanHost(host, time.Second, logger); got != 1 {
		t.Errorf("expected 1 open port, got %d (open=%s closed=%s)",
			got, strconv.Itoa(openPort), strconv.Itoa(closedPort))
	}
}

func TestScanHostUnresolvable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	host := HostSpec{Name: "host.invalid", Ports: []int{80}}

	if got := ScanHost(host, time.Second, logger); got != 0 {
		t.Errorf("expected 0 open ports, got %d", got)
	}
}
