// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for placekeeper.
//
// The configuration file is named by the --config flag or the
// PLACEKEEPER_CONFIG environment variable. Without either, [Default]
// is used as is: its values are the constants of the observed
// deployment (1000x1000 canvas, 5 minute order refresh, 15 second
// acquisition and parse retries, 30 second idle recheck, 3 second
// cooldown margin).
//
// A file only needs the keys it changes; everything else keeps its
// default. Durations are Go duration strings ("15s", "5m"). Path fields
// expand ${VAR} and ${VAR:-default}.
//
// Key exports:
//
//   - [Config] -- Canvas, Endpoints, Channel, Client, Timing, Credential, Status
//   - [Default] -- the observed-deployment defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- structural checks run by both loaders
package config
