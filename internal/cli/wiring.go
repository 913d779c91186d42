package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/auroralab/aurora/internal/audit"
	"github.com/auroralab/aurora/internal/config"
	"github.com/auroralab/aurora/internal/executor"
	"github.com/auroralab/aurora/internal/intent"
	"github.com/auroralab/aurora/internal/pipeline"
	"github.com/auroralab/aurora/internal/registry"
	"github.com/auroralab/aurora/internal/router"
	"github.com/auroralab/aurora/internal/speaker"
	"github.com/auroralab/aurora/internal/wakeword"
)

// runtime bundles everything a command needs to process requests.
type runtime struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	logger   *zap.Logger

	auditLog *audit.Log
	store    *speaker.ProfileStore
}

// Close releases the audit log and profile store handles.
func (rt *runtime) Close() {
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.auditLog != nil {
		rt.auditLog.Close()
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

// buildRuntime assembles the full pipeline from configuration.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	reg, regHash, err := loadRegistryWithHash(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}

	classifier, err := intent.NewAdapter(cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("load intent model from %s: %w (run `aurora train` first)", cfg.ModelDir, err)
	}

	rt := &runtime{cfg: cfg, logger: logger}

	var gate pipeline.SpeakerGate
	if cfg.Speaker.Enabled {
		store, err := speaker.OpenStore(cfg.Speaker.ProfilePath)
		if err != nil {
			return nil, err
		}
		verifier, err := speaker.NewVerifier(store, speaker.Config{
			Threshold:        cfg.Speaker.Threshold,
			MinEnrollSamples: cfg.Speaker.MinEnrollSamples,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		rt.store = store
		gate = verifier
	}

	rtr, err := router.New(cfg.Thresholds.AutoExecute, cfg.Thresholds.Confirm)
	if err != nil {
		rt.Close()
		return nil, err
	}

	auditLog, err := audit.Open(cfg.AuditPath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.auditLog = auditLog

	wwOpts := wakeword.Options{
		CaseSensitive: cfg.Wakeword.CaseSensitive,
		StartOnly:     cfg.Wakeword.StartOnly,
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Wakeword:     wakeword.NewProcessor(cfg.Wakeword.Word, wwOpts),
		Classifier:   classifier,
		Gate:         gate,
		Router:       rtr,
		Runner:       executor.New(cfg.ExecTimeout()),
		Registry:     reg,
		Audit:        auditLog,
		Logger:       logger,
		RegistryHash: regHash,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.pipeline = pipe
	return rt, nil
}

// loadRegistryWithHash loads the command registry and hashes its raw bytes
// for the audit trail.
func loadRegistryWithHash(path string) (*registry.Registry, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read registry %s: %w", path, err)
	}
	h := sha256.Sum256(data)

	reg, err := registry.Load(path)
	if err != nil {
		return nil, "", err
	}
	return reg, "sha256:" + hex.EncodeToString(h[:]), nil
}
