// Kunhua Huang 2026

package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ecstasoy/sockharness/pkg/codec"
	"github.com/ecstasoy/sockharness/pkg/config"
	"github.com/ecstasoy/sockharness/pkg/delay"
	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/extension"
	"github.com/ecstasoy/sockharness/pkg/logging"
	"github.com/ecstasoy/sockharness/pkg/registry"
	"github.com/ecstasoy/sockharness/pkg/registry/etcd"
	"github.com/ecstasoy/sockharness/pkg/registry/memory"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

// Main runs the harness for one address family and returns the exit
// status. The same binary plays both roles: as launched it resolves the
// endpoint, starts a copy of itself as the client and serves; the copy
// connects and sends.
func Main(family endpoint.Family, args []string) int {
	ctx := context.Background()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sockharness: config: %v\n", err)
		return ExitError
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sockharness: %v\n", err)
		return ExitError
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	role, err := RoleFromEnv()
	if err != nil {
		logger.Error("select role", zap.Error(err))
		return ExitError
	}

	parsed, err := delay.ParseArgs(args)
	if err != nil {
		logger.Error("parse arguments", zap.Error(err))
		return ExitError
	}

	var (
		ep    endpoint.Endpoint
		runID string
	)
	if role == transport.RoleServer {
		// Resolved once, before the split; the client reuses this result.
		if ep, err = endpoint.ForFamily(ctx, family); err != nil {
			logger.Error("resolve endpoint", zap.Stringer("family", family), zap.Error(err))
			return ExitError
		}
		runID = uuid.NewString()
	} else if ep, runID, err = inherited(family); err != nil {
		logger.Error("read endpoint", zap.Error(err))
		return ExitError
	}

	logger = logger.With(
		zap.Stringer("role", role),
		zap.Stringer("family", family),
		zap.String("run_id", runID),
		zap.Int("pid", os.Getpid()),
	)

	reg, err := openRegistry(cfg.Registry)
	if err != nil {
		logger.Warn("open registry, recording disabled", zap.String("type", cfg.Registry.Type), zap.Error(err))
	}
	if reg != nil {
		defer reg.Close()
	}

	ext := initExtension(cfg.Extension, logger)
	if ext != nil {
		defer ext.Dispatch(0, extension.Removed, nil, nil)
	}

	role, peer, err := Split(ctx, Launch{Args: args, Endpoint: ep, RunID: runID})
	if err != nil {
		logger.Error("split roles", zap.Error(err))
		return ExitError
	}

	h := &Harness{
		Endpoint:  ep,
		RunID:     runID,
		Args:      parsed,
		Logger:    logger,
		Registry:  reg,
		Cleanup:   cfg.Registry.Cleanup,
		Extension: ext,
	}

	if family == endpoint.IPv6 {
		// Both roles show the resolved address they share.
		fmt.Fprintln(h.stdout(), ep)
	}

	var runErr error
	if role == transport.RoleServer {
		_, runErr = h.RunServer(ctx)

		code, err := peer.Wait()
		if err != nil {
			logger.Warn("reap client", zap.Error(err))
		} else {
			logger.Info("client exited", zap.Int("pid", peer.PID()), zap.Int("status", code))
		}
	} else {
		_, runErr = h.RunClient(ctx)
	}

	if path := cfg.Metrics.Textfile; path != "" {
		if err := writeTextfile(path, role); err != nil {
			logger.Warn("write metrics textfile", zap.Error(err))
		}
	}

	return h.report(runErr)
}

func openRegistry(cfg config.RegistryConfig) (registry.Registry, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.NewRegistry(), nil
	case "etcd":
		typ, err := codec.ParseType(cfg.Codec)
		if err != nil {
			return nil, err
		}
		compressor, err := codec.GetCompressor(codec.CompressType(cfg.Compress))
		if err != nil {
			return nil, err
		}

		reg, err := etcd.NewEtcdRegistry(&etcd.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout.Duration,
			KeyPrefix:   cfg.Etcd.KeyPrefix,
			LeaseTTL:    cfg.Etcd.LeaseTTL,
			Codec:       codec.NewCompressedCodec(codec.GetOrDefault(typ), compressor),
		})
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unknown registry type %q", cfg.Type)
	}
}

// initExtension loads the configured module into the process dispatcher.
// A module that fails to load is dropped and the run continues without it.
func initExtension(cfg config.ExtensionConfig, logger *zap.Logger) *extension.Dispatcher {
	if cfg.Module == "" {
		return nil
	}

	d := extension.Default()
	if res := d.Dispatch(0, extension.Initialization, cfg.Module, nil); res < 0 {
		logger.Warn("extension refused initialization", zap.String("module", cfg.Module), zap.Int("status", res))
		return nil
	}

	return d
}

// textfilePath gives each role its own file: run.prom becomes
// run.server.prom and run.client.prom.
func textfilePath(path string, role transport.Role) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + role.String() + ext
}

func writeTextfile(path string, role transport.Role) error {
	return prometheus.WriteToTextfile(textfilePath(path, role), prometheus.DefaultGatherer)
}
