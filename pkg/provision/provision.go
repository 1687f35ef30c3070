// Package provision installs a metrics node agent the way the monitoring
// playbook describes it: create the install layout, download a versioned
// binary and verify its checksum for the host architecture, render the
// service unit and collector scrape config from templates, and enable the
// service. Every step is idempotent; re-running a completed install is a
// no-op.
package provision

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

// Spec is the declarative description of one agent install, loaded from YAML.
type Spec struct {
	// Version of the agent to install, e.g. "1.7.0".
	Version string `yaml:"version"`
	// DownloadURL is a template with {{.Version}} and {{.Arch}} variables.
	// A URL ending in .gz is decompressed after checksum verification.
	DownloadURL string `yaml:"downloadURL"`
	// Checksums maps architecture to the sha256 of the download payload.
	Checksums map[string]string `yaml:"checksums"`
	// InstallDir receives the binary; created if absent.
	InstallDir string `yaml:"installDir"`
	// BinaryName inside InstallDir, e.g. "node_exporter".
	BinaryName string `yaml:"binaryName"`
	// User the service runs as.
	User string `yaml:"user"`
	// ListenAddress passed to the agent, e.g. ":9100".
	ListenAddress string `yaml:"listenAddress"`
	// UnitDir receives the rendered systemd unit.
	UnitDir string `yaml:"unitDir"`
	// ServiceName for the unit file and systemctl.
	ServiceName string `yaml:"serviceName"`
	// ScrapeConfigPath, when set, receives a rendered collector scrape
	// config listing ScrapeTargets.
	ScrapeConfigPath string   `yaml:"scrapeConfigPath"`
	ScrapeTargets    []string `yaml:"scrapeTargets"`
	// ScrapeInterval defaults to 30s.
	ScrapeInterval string `yaml:"scrapeInterval"`
}

// LoadSpec reads and validates an install spec from a YAML file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("provision: read spec: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("provision: parse spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	switch {
	case s.Version == "":
		return fmt.Errorf("provision: version is required")
	case s.DownloadURL == "":
		return fmt.Errorf("provision: downloadURL is required")
	case len(s.Checksums) == 0:
		return fmt.Errorf("provision: checksums are required")
	case s.InstallDir == "":
		return fmt.Errorf("provision: installDir is required")
	case s.BinaryName == "":
		return fmt.Errorf("provision: binaryName is required")
	}
	if s.User == "" {
		s.User = "node_exporter"
	}
	if s.ListenAddress == "" {
		s.ListenAddress = ":9100"
	}
	if s.UnitDir == "" {
		s.UnitDir = "/etc/systemd/system"
	}
	if s.ServiceName == "" {
		s.ServiceName = "node_exporter"
	}
	if s.ScrapeInterval == "" {
		s.ScrapeInterval = "30s"
	}
	return nil
}

// Installer executes the install steps for a Spec.
type Installer struct {
	Spec *Spec
	// Arch overrides runtime.GOARCH. Must have an entry in Spec.Checksums.
	Arch string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
	Logger     *slog.Logger
	// SkipService disables the systemctl step, for tests and containers.
	SkipService bool
	// runCommand is a seam for tests; defaults to exec.CommandContext.
	runCommand func(ctx context.Context, name string, args ...string) error
}

// Run performs all install steps in order.
func (i *Installer) Run(ctx context.Context) error {
	if i.Logger == nil {
		i.Logger = slog.Default()
	}
	if i.Arch == "" {
		i.Arch = runtime.GOARCH
	}

	if err := i.ensureDirs(); err != nil {
		return err
	}
	if err := i.installBinary(ctx); err != nil {
		return err
	}
	if err := i.renderUnit(); err != nil {
		return err
	}
	if err := i.renderScrapeConfig(); err != nil {
		return err
	}
	if i.SkipService {
		i.Logger.Info("skipping service enable/start")
		return nil
	}
	return i.enableService(ctx)
}

func (i *Installer) ensureDirs() error {
	dirs := []string{i.Spec.InstallDir, i.Spec.UnitDir}
	if i.Spec.ScrapeConfigPath != "" {
		dirs = append(dirs, filepath.Dir(i.Spec.ScrapeConfigPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("provision: create %s: %w", dir, err)
		}
	}
	return nil
}

// installBinary downloads the agent, verifies its checksum and writes it to
// InstallDir. A marker file records the checksum of the installed payload;
// when it matches the spec the download is skipped entirely.
func (i *Installer) installBinary(ctx context.Context) error {
	want, ok := i.Spec.Checksums[i.Arch]
	if !ok {
		return fmt.Errorf("provision: no checksum for architecture %q", i.Arch)
	}

	binPath := filepath.Join(i.Spec.InstallDir, i.Spec.BinaryName)
	marker := binPath + ".sha256"
	if prev, err := os.ReadFile(marker); err == nil && strings.TrimSpace(string(prev)) == want {
		if _, err := os.Stat(binPath); err == nil {
			i.Logger.Info("binary already installed", "path", binPath, "version", i.Spec.Version)
			return nil
		}
	}

	url, err := renderString(i.Spec.DownloadURL, map[string]string{
		"Version": i.Spec.Version,
		"Arch":    i.Arch,
	})
	if err != nil {
		return fmt.Errorf("provision: render download URL: %w", err)
	}

	i.Logger.Info("downloading agent", "url", url, "arch", i.Arch)
	payload, err := i.download(ctx, url)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(payload)
	got := hex.EncodeToString(sum[:])
	if got != want {
		return fmt.Errorf("provision: checksum mismatch for %s: got %s, want %s", url, got, want)
	}

	binary := payload
	if strings.HasSuffix(url, ".gz") {
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("provision: open gzip payload: %w", err)
		}
		binary, err = io.ReadAll(gz)
		if err != nil {
			return fmt.Errorf("provision: decompress payload: %w", err)
		}
	}

	if err := os.WriteFile(binPath, binary, 0o755); err != nil {
		return fmt.Errorf("provision: write %s: %w", binPath, err)
	}
	if err := os.WriteFile(marker, []byte(want+"\n"), 0o644); err != nil {
		return fmt.Errorf("provision: write %s: %w", marker, err)
	}
	i.Logger.Info("binary installed", "path", binPath, "sha256", want)
	return nil
}

func (i *Installer) download(ctx context.Context, url string) ([]byte, error) {
	cli := i.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provision: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provision: download %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

const unitTemplate = `[Unit]
Description=Metrics node agent
After=network-online.target

[Service]
User={{.User}}
ExecStart={{.ExecStart}} --web.listen-address={{.ListenAddress}}
Restart=on-failure

[Install]
WantedBy=multi-user.target
`

func (i *Installer) renderUnit() error {
	unitPath := filepath.Join(i.Spec.UnitDir, i.Spec.ServiceName+".service")
	content, err := renderString(unitTemplate, map[string]string{
		"User":          i.Spec.User,
		"ExecStart":     filepath.Join(i.Spec.InstallDir, i.Spec.BinaryName),
		"ListenAddress": i.Spec.ListenAddress,
	})
	if err != nil {
		return fmt.Errorf("provision: render unit: %w", err)
	}
	return writeIfChanged(unitPath, []byte(content), 0o644, i.Logger)
}

const scrapeConfigTemplate = `global:
  scrape_interval: {{.Interval}}

scrape_configs:
  - job_name: node
    static_configs:
      - targets:
{{- range .Targets}}
          - {{.}}
{{- end}}
`

func (i *Installer) renderScrapeConfig() error {
	if i.Spec.ScrapeConfigPath == "" {
		return nil
	}
	tmpl, err := template.New("scrape").Parse(scrapeConfigTemplate)
	if err != nil {
		return fmt.Errorf("provision: parse scrape template: %w", err)
	}
	var b strings.Builder
	err = tmpl.Execute(&b, struct {
		Interval string
		Targets  []string
	}{i.Spec.ScrapeInterval, i.Spec.ScrapeTargets})
	if err != nil {
		return fmt.Errorf("provision: render scrape config: %w", err)
	}
	return writeIfChanged(i.Spec.ScrapeConfigPath, []byte(b.String()), 0o644, i.Logger)
}

func (i *Installer) enableService(ctx context.Context) error {
	run := i.runCommand
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) error {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		}
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", i.Spec.ServiceName},
		{"restart", i.Spec.ServiceName},
	} {
		if err := run(ctx, "systemctl", args...); err != nil {
			return fmt.Errorf("provision: systemctl %s: %w", strings.Join(args, " "), err)
		}
	}
	i.Logger.Info("service enabled and started", "service", i.Spec.ServiceName)
	return nil
}

// writeIfChanged leaves identical files untouched so repeated runs do not
// dirty mtimes.
func writeIfChanged(path string, content []byte, mode os.FileMode, logger *slog.Logger) error {
	if prev, err := os.ReadFile(path); err == nil && string(prev) == string(content) {
		logger.Info("file up to date", "path", path)
		return nil
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return fmt.Errorf("provision: write %s: %w", path, err)
	}
	logger.Info("file written", "path", path)
	return nil
}

func renderString(tmplStr string, data map[string]string) (string, error) {
	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
