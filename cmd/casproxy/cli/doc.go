// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for casproxy.
//
// The central type is [Command]: a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. The tree is assembled in cmd/casproxy/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and help output with examples.
//
// Unknown subcommands and flags get a "did you mean" suggestion based
// on Levenshtein distance (threshold: distance <= 3).
//
// Commands return [ToolError] values to categorize failures and
// [ExitError] when they have already printed their own output.
package cli
