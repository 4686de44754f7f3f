// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry runs an operation a bounded number of times with
// jittered exponential backoff.
//
// The cache client applies internal retries in exactly two places:
// the token refresh RPC and the endpoint latency probes. CAS and
// key/value calls are not retried here; a persistent outage must reach
// the caller instead of being masked.
//
// Delays start at Policy.BaseDelay and double per attempt. Each delay
// is perturbed by a uniform offset in [-base, +base] of that attempt's
// base so that many build subprocesses failing together do not retry
// in lockstep.
package retry
