// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cas

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// KeyIDPrefix marks identifiers derived from key/value keys.
const KeyIDPrefix = "kv~"

// keyDigestSize is the BLAKE3 output length for key ids, chosen to
// match the SHA-512 length of content ids.
const keyDigestSize = 64

// ContentID returns the content id of data: uppercase hex SHA-512.
func ContentID(data []byte) string {
	sum := sha512.Sum512(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// KeyID maps a raw key/value key to its identifier: KeyIDPrefix
// followed by the uppercase hex of a 64-byte BLAKE3 XOF digest of key.
func KeyID(key []byte) string {
	hasher := blake3.New()
	hasher.Write(key)
	digest := make([]byte, keyDigestSize)
	hasher.Digest().Read(digest)
	return KeyIDPrefix + strings.ToUpper(hex.EncodeToString(digest))
}
