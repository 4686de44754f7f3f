// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cacheerr defines the error taxonomy shared by the cache
// client components.
//
// Every failure that crosses a component boundary is classified into a
// [Kind]. Callers test for a kind with errors.Is against the sentinel
// errors ([ErrUnauthorized], [ErrNotFound], ...) and recover the HTTP
// status or server message with errors.As against [*Error]. The local
// RPC adapter transmits the kind alongside the description so the
// native build system can tell a cold cache from a broken connection.
package cacheerr
