package spectatorpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"labyrinth-server/internal/config"

	"github.com/rs/zerolog/log"
)

const (
	defaultWorkers          = 4
	defaultDispatchBuffer   = 1024
	defaultRetryBase        = 500 * time.Millisecond
	defaultConfigReload     = time.Second
	defaultFailureThreshold = 3
	defaultCircuitOpen      = 30 * time.Second
	defaultRequestTimeout   = 5 * time.Second
)

// ConfigFromServer reads the SESSION_PUSH_* settings. Targets come from
// SESSION_PUSH_CONFIG_PATH when set, else from SESSION_PUSH_CONFIG_JSON;
// nothing is parsed while push is disabled.
func ConfigFromServer(cfg config.ServerConfig) (Config, error) {
	out := Config{
		Enabled:      cfg.SessionPushEnabled,
		ConfigPath:   strings.TrimSpace(cfg.SessionPushConfigPath),
		ConfigReload: time.Duration(cfg.SessionPushConfigReload) * time.Millisecond,
		Workers:      cfg.SessionPushWorkers,
		RetryMax:     max(cfg.SessionPushRetryMax, 0),
		RetryBase:    time.Duration(cfg.SessionPushRetryBaseMS) * time.Millisecond,
	}.withDefaults()
	if !out.Enabled {
		return out, nil
	}

	raw := []byte(cfg.SessionPushConfigJSON)
	if out.ConfigPath != "" {
		var err error
		if raw, err = os.ReadFile(out.ConfigPath); err != nil {
			return Config{}, fmt.Errorf("read session push targets %q: %w", out.ConfigPath, err)
		}
	}
	targets, err := decodeTargets(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.DispatchBuffer <= 0 {
		c.DispatchBuffer = defaultDispatchBuffer
	}
	if c.RetryBase <= 0 {
		c.RetryBase = defaultRetryBase
	}
	if c.ConfigReload <= 0 {
		c.ConfigReload = defaultConfigReload
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.CircuitOpenDuration <= 0 {
		c.CircuitOpenDuration = defaultCircuitOpen
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}

// decodeTargets parses a JSON array of targets. Blank input means no targets.
func decodeTargets(raw []byte) ([]PushTarget, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var targets []PushTarget
	if err := json.Unmarshal(raw, &targets); err != nil {
		return nil, fmt.Errorf("parse session push targets: %w", err)
	}
	out := make([]PushTarget, 0, len(targets))
	for _, t := range targets {
		if t, ok := normalizeTarget(t); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// normalizeTarget lowercases names and rejects disabled targets, targets
// without an endpoint and unknown scopes.
func normalizeTarget(t PushTarget) (PushTarget, bool) {
	t.Endpoint = strings.TrimSpace(t.Endpoint)
	if !t.Enabled || t.Endpoint == "" {
		return t, false
	}
	t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))
	t.ScopeType = strings.ToLower(strings.TrimSpace(t.ScopeType))
	if t.ScopeType == "" {
		t.ScopeType = ScopeAll
	}
	if !validScope(t.ScopeType) {
		return t, false
	}
	t.ScopeValue = strings.TrimSpace(t.ScopeValue)
	t.EventAllowlist = slices.Clone(t.EventAllowlist)
	for i, ev := range t.EventAllowlist {
		t.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(ev))
	}
	return t, true
}

// watchTargets polls the targets file and swaps the target list when its
// content changes. A file that fails to parse keeps the previous targets.
func (m *Manager) watchTargets(ctx context.Context) {
	last, _ := os.ReadFile(m.cfg.ConfigPath)
	last = bytes.TrimSpace(last)
	ticker := time.NewTicker(m.cfg.ConfigReload)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
		}
		raw, err := os.ReadFile(m.cfg.ConfigPath)
		if err != nil {
			metricPushConfigReloadError.Add(1)
			continue
		}
		raw = bytes.TrimSpace(raw)
		if bytes.Equal(raw, last) {
			continue
		}
		targets, err := decodeTargets(raw)
		if err != nil {
			metricPushConfigReloadError.Add(1)
			log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("session_push_config_reload_failed")
			continue
		}
		m.mu.Lock()
		m.cfg.Targets = targets
		m.mu.Unlock()
		last = raw
		metricPushConfigReloadTotal.Add(1)
		log.Info().Int("targets", len(targets)).Msg("session_push_config_reloaded")
	}
}
