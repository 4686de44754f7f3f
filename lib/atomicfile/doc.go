// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile writes files so readers never observe partial
// content. Used for credential and metadata records shared by
// concurrent processes.
package atomicfile
