// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"testing"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/placekeeper/lib/clock"
	"github.com/bureau-foundation/placekeeper/lib/config"
	"github.com/bureau-foundation/placekeeper/lib/credential"
	"github.com/bureau-foundation/placekeeper/lib/notify"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":  slog.LevelDebug,
		"INFO":   slog.LevelInfo,
		" warn ": slog.LevelWarn,
		"error":  slog.LevelError,
	}
	for name, want := range tests {
		got, err := parseLevel(name)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("parseLevel(loud) succeeded")
	}
}

func TestOptionsOverrideConfig(t *testing.T) {
	var opts options
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.register(flagSet)
	err := flagSet.Parse([]string{
		"--orders", "/srv/orders.jsonc",
		"--token-file", "/run/secrets/token",
		"--status-listen", "127.0.0.1:8089",
		"-q",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg := config.Default()
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate after overrides: %v", err)
	}
	if cfg.Endpoints.Orders != "/srv/orders.jsonc" {
		t.Errorf("orders = %q", cfg.Endpoints.Orders)
	}
	if cfg.Credential.Source != config.SourceFile || cfg.Credential.TokenFile != "/run/secrets/token" {
		t.Errorf("credential = %+v", cfg.Credential)
	}
	if cfg.Status.Listen != "127.0.0.1:8089" || !opts.quiet {
		t.Errorf("status.listen = %q, quiet = %v", cfg.Status.Listen, opts.quiet)
	}
}

func TestOptionsLeaveConfigAlone(t *testing.T) {
	cfg := config.Default()
	(&options{}).apply(cfg)
	if cfg.Endpoints.Orders != config.Default().Endpoints.Orders || cfg.Credential.Source != config.SourcePage {
		t.Errorf("empty options changed the config: %+v", cfg)
	}
}

func TestCredentialSourceSelection(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	cfg := config.Default()

	if _, ok := credentialSource(cfg, logger).(*credential.PageSource); !ok {
		t.Error("default source is not the page source")
	}
	cfg.Credential.Source = config.SourceBrowser
	if source, ok := credentialSource(cfg, logger).(*credential.BrowserSource); !ok || source.Marker != cfg.Credential.Marker {
		t.Error("browser source not selected")
	}
	cfg.Credential.Source = config.SourceFile
	cfg.Credential.TokenFile = "/tmp/token"
	if source, ok := credentialSource(cfg, logger).(*credential.FileSource); !ok || source.Path != "/tmp/token" {
		t.Error("file source not selected")
	}
}

func TestNewAgentWiresEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoints.Orders = t.TempDir() + "/orders.json"
	logger := slog.New(slog.DiscardHandler)
	holder := credential.NewHolder(&credential.FileSource{Path: "/nonexistent"}, logger, nil)

	agent, err := newAgent(cfg, holder, notify.Discard, clock.Real(), logger)
	if err != nil {
		t.Fatalf("newAgent: %v", err)
	}
	if agent.engine == nil || agent.store == nil {
		t.Fatal("agent is missing components")
	}
	if agent.store.Current().Count() != 0 {
		t.Error("store is not empty before the first refresh")
	}
}
