// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress provides reversible compression for artifact
// payloads sent to the remote cache.
//
// Every compressed payload is framed so it describes itself:
//
//	+-----+-------------------------+-----------------+
//	| tag | uvarint uncompressed len | algorithm bytes |
//	+-----+-------------------------+-----------------+
//
// The tag is one byte naming the algorithm. Decompress dispatches on
// the tag, not on the Codec's configured algorithm, so blobs written by
// a client configured for lz4 remain readable by one configured for
// zstd. Payloads that do not shrink are stored with the "none" tag.
//
// Decompress(Compress(x)) == x holds for every x, including the empty
// slice. Codecs are stateless and safe for concurrent use.
package compress
