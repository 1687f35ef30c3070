// Command portcheck is a simple TCP port scanner driven by a YAML
// configuration file.
//
//	portcheck -config scan.yaml
//
// The configuration lists hosts and the ports to probe on each:
//
//	hosts:
//	  - name: raspberrypi
//	    ports: [22, 9100]
//	  - name: dmaf5
//	    ports: [22, 80, 443]
//
// Hosts are scanned sequentially. Each port is reported as open, closed, or
// error. The exit code is non-zero when the configuration cannot be read.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/josevnz/dashkit/pkg/logging"
)

// PortStatus is the result of probing a single TCP port.
type PortStatus string

const (
	StatusOpen   PortStatus = "open"
	StatusClosed PortStatus = "closed"
	StatusError  PortStatus = "error"
)

// HostSpec names a host and the ports to probe on it.
type HostSpec struct {
	Name  string `yaml:"name"`
	Ports []int  `yaml:"ports"`
}

// ScanConfig is the YAML configuration for a scan.
type ScanConfig struct {
	Hosts []HostSpec `yaml:"hosts"`
}

// LoadConfig reads and validates a scan configuration file.
func LoadConfig(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg ScanConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("config %s lists no hosts", path)
	}
	for i, host := range cfg.Hosts {
		if strings.TrimSpace(host.Name) == "" {
			return nil, fmt.Errorf("host %d has no name", i)
		}
		if len(host.Ports) == 0 {
			return nil, fmt.Errorf("host %s lists no ports", host.Name)
		}
	}
	return &cfg, nil
}

// CheckPort dials a single TCP port and classifies the result. A refused
// connection counts as closed; resolution and other network failures count
// as errors.
func CheckPort(addr string, port int, timeout time.Duration) PortStatus {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(addr, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		if opErr, ok := err.(*net.OpError); ok && opErr.Op == "dial" {
			return StatusClosed
		}
		return StatusError
	}
	if err := conn.Close(); err != nil {
		return StatusError
	}
	return StatusOpen
}

// ScanHost resolves one host and probes each of its ports, logging the
// outcome per port. It returns the number of open ports found.
func ScanHost(host HostSpec, timeout time.Duration, logger *slog.Logger) int {
	name := strings.TrimSpace(host.Name)

	addrs, err := net.LookupHost(name)
	if err != nil {
		logger.Error("failed to resolve host", "host", name, "error", err)
		return 0
	}
	ip := addrs[0]

	open := 0
	for _, port := range host.Ports {
		status := CheckPort(ip, port, timeout)
		switch status {
		case StatusOpen:
			open++
			logger.Info("port is open", "host", name, "ip", ip, "port", port)
		case StatusClosed:
			logger.Warn("port is closed", "host", name, "ip", ip, "port", port)
		default:
			logger.Error("port probe failed", "host", name, "ip", ip, "port", port)
		}
	}
	return open
}

func main() {
	configPath := flag.String("config", "", "Path to the scan configuration YAML (required)")
	timeout := flag.Duration("timeout", 5*time.Second, "Per-port dial timeout")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger := logging.New(*logLevel, *logFormat)
	slog.SetDefault(logger)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required. Example configuration:")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  hosts:")
		fmt.Fprintln(os.Stderr, "    - name: raspberrypi")
		fmt.Fprintln(os.Stderr, "      ports: [22, 9100]")
		os.Exit(2)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load scan config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger.Info("starting scan", "hosts", len(cfg.Hosts))
	open := 0
	for _, host := range cfg.Hosts {
		open += ScanHost(host, *timeout, logger)
	}
	logger.Info("scan complete", "hosts", len(cfg.Hosts), "open_ports", open)
}
