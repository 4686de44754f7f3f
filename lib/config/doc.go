// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads casproxy configuration.
//
// Configuration comes from at most one YAML file, named by the
// --config flag (via [LoadFile]) or the CASPROXY_CONFIG environment
// variable (via [Load]). Without either, [Default] values are used.
// There is no automatic file search.
//
// Path fields support ${HOME} and ${VAR:-default} expansion. The
// environment overlay is deliberately narrow: CI, CASPROXY_TOKEN, and
// the deprecated CASPROXY_CONFIG_TOKEN are read into [Config].Env and
// never change file values. When CI is set, the file's "ci" section
// overrides the base values.
//
// Key exports:
//
//   - [Config] -- server, handle, compression, paths, timeouts
//   - [Default] -- XDG-derived paths and default timeouts
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
