// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// casproxy is the remote compilation-cache bridge. "casproxy serve"
// runs the bridge for one project; the other subcommands manage
// credentials and inspect local state. See cmd/casproxy/commands for
// the command tree.
package main
