// Command provision installs and configures the node metrics agent on the
// local machine from a declarative YAML spec.
//
//	provision -spec node_exporter.yaml
//
// The spec names the agent version, per-architecture checksums, install
// paths, and the scrape target to register. Runs are idempotent: a binary
// whose recorded checksum already matches is not downloaded again, and
// rendered files are only rewritten when their content changes.
//
// Root is normally required to write under /usr/local and /etc; use
// -no-service together with spec paths under a scratch directory to dry-run
// as an unprivileged user.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/josevnz/dashkit/pkg/logging"
	"github.com/josevnz/dashkit/pkg/provision"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	specPath := flag.String("spec", "", "Path to the provisioning spec YAML (required)")
	arch := flag.String("arch", runtime.GOARCH, "Target architecture, e.g. amd64 or arm64")
	noService := flag.Bool("no-service", false, "Skip systemd unit installation and activation")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger := logging.New(*logLevel, *logFormat)
	slog.SetDefault(logger)

	if *specPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	spec, err := provision.LoadSpec(*specPath)
	if err != nil {
		logger.Error("failed to load provisioning spec", "path", *specPath, "error", err)
		os.Exit(1)
	}

	logger.Info("starting provisioning",
		"version", version,
		"agent_version", spec.Version,
		"arch", *arch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	installer := &provision.Installer{
		Spec:        spec,
		Arch:        *arch,
		HTTPClient:  &http.Client{Timeout: 5 * time.Minute},
		Logger:      logger,
		SkipService: *noService,
	}

	if err := installer.Run(ctx); err != nil {
		logger.Error("provisioning failed", "error", err)
		os.Exit(1)
	}

	logger.Info("provisioning complete", "binary", spec.BinaryName, "listen", spec.ListenAddress)
}
