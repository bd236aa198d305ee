// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package manifest

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/sumdb/note"
)

// Supported manifest signing key types.
const (
	// Note is an Ed25519 key in note verifier key format.
	Note = "note"
	// ECDSA is a P-256 key held by a signing service, written as
	// "<name>+<hex keyhash>+<base64 of 0x02 followed by the PKIX public key>".
	ECDSA = "ecdsa"
)

const algECDSA = 0x02

// NewVerifier returns a manifest verifier for key. An empty keyType is a
// note key.
func NewVerifier(keyType, key string) (note.Verifier, error) {
	switch keyType {
	case "", Note:
		return note.NewVerifier(key)
	case ECDSA:
		return NewECDSAVerifier(key)
	default:
		return nil, fmt.Errorf("unknown key type %q", keyType)
	}
}

// ecdsaVerifier verifies ECDSA signatures over the SHA-256 digest of a note.
type ecdsaVerifier struct {
	name    string
	keyHash uint32
	pubK    *ecdsa.PublicKey
}

func (e *ecdsaVerifier) Name() string    { return e.name }
func (e *ecdsaVerifier) KeyHash() uint32 { return e.keyHash }

func (e *ecdsaVerifier) Verify(msg, sig []byte) bool {
	dgst := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(e.pubK, dgst[:], sig)
}

// NewECDSAVerifier parses an ECDSA key in the form described by ECDSA.
//
// The key hash of such keys is the truncated SHA-256 of the PKIX public key
// and, unlike for note keys, does not cover the key name.
func NewECDSAVerifier(key string) (note.Verifier, error) {
	parts := strings.SplitN(key, "+", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("want <name>+<hash>+<key>, got %d parts", len(parts))
	}
	name, hash, material := parts[0], parts[1], parts[2]

	kh, err := strconv.ParseUint(hash, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid key hash %q: %w", hash, err)
	}
	raw, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return nil, fmt.Errorf("invalid key material: %w", err)
	}
	if len(raw) == 0 || raw[0] != algECDSA {
		return nil, errors.New("not an ECDSA key")
	}
	spki := raw[1:]
	pub, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	pubK, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is a %T, want ECDSA", pub)
	}
	h := sha256.Sum256(spki)
	if got := binary.BigEndian.Uint32(h[:]); got != uint32(kh) {
		return nil, fmt.Errorf("key hash is %08x, key says %08x", got, kh)
	}
	return &ecdsaVerifier{name: name, keyHash: uint32(kh), pubK: pubK}, nil
}
