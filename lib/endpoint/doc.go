// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoint selects the cache endpoint to use for a server and
// account.
//
// The server advertises candidate endpoints through a [Discoverer].
// With one candidate there is nothing to choose and it is returned
// without measurement. With several, every candidate is probed
// concurrently and the one with the lowest measured latency wins; ties
// go to the candidate listed first, so the choice is deterministic for
// a given set of measurements. The selection is memoized for the life
// of the [Store]: one build invocation sees one endpoint.
package endpoint
