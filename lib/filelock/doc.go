// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filelock provides advisory, cross-process exclusive locks
// backed by flock(2) on a lock file.
//
// Locks belong to an open file description, so two TryAcquire calls
// on the same path conflict even within one process. The kernel drops
// the lock when the holder exits, so a crashed process never leaves a
// stale lock behind. The lock file itself is left in place on Release;
// deleting it would race with a process that has just opened it.
package filelock
