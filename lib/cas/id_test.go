// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cas

import (
	"strings"
	"testing"
)

func TestContentIDKnownVector(t *testing.T) {
	const emptySHA512 = "CF83E1357EEFB8BDF1542850D66D8007D620E4050B5715DC83F4A921D36CE9CE" +
		"47D0D13C5D85F2B0FF8318D2877EEC2F63B931BD47417A81A538327AF927DA3E"
	if got := ContentID(nil); got != emptySHA512 {
		t.Errorf("ContentID(empty) = %s, want %s", got, emptySHA512)
	}
}

func TestContentIDIsDeterministic(t *testing.T) {
	a := ContentID([]byte("payload"))
	b := ContentID([]byte("payload"))
	if a != b {
		t.Errorf("ContentID not deterministic: %s vs %s", a, b)
	}
	if a == ContentID([]byte("payload2")) {
		t.Error("distinct inputs share a content id")
	}
	if len(a) != 128 || strings.ToUpper(a) != a {
		t.Errorf("ContentID = %q, want 128 uppercase hex characters", a)
	}
}

func TestKeyID(t *testing.T) {
	id := KeyID([]byte("0~abc"))
	if !strings.HasPrefix(id, KeyIDPrefix) {
		t.Errorf("KeyID = %q, want prefix %q", id, KeyIDPrefix)
	}
	if len(id) != len(KeyIDPrefix)+128 {
		t.Errorf("KeyID length = %d, want %d", len(id), len(KeyIDPrefix)+128)
	}
	if KeyID([]byte("0~abc")) != id {
		t.Error("KeyID not deterministic")
	}
	if KeyID([]byte("0~abd")) == id {
		t.Error("distinct keys share an id")
	}
	if KeyID([]byte("x")) == ContentID([]byte("x")) {
		t.Error("key ids collide with content ids")
	}
}
