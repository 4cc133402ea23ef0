// Package crypto wraps the signing and hashing primitives used by the
// validator: Ed25519 account keys and BLAKE2b-256 digests.
package crypto

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
	"golang.org/x/crypto/blake2b"
)

const (
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
	SeedSize      = ed25519.SeedSize
	DigestSize    = blake2b.Size256
)

// Digest is a BLAKE2b-256 hash.
type Digest [DigestSize]byte

func (d Digest) Bytes() []byte { return d[:] }

func (d Digest) String() string { return fmt.Sprintf("%x", d[:]) }

// DigestFromBytes copies b into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Hash computes the BLAKE2b-256 digest of data.
func Hash(data []byte) Digest {
	return blake2b.Sum256(data)
}

// KeyPair holds an Ed25519 signing key and its public half.
type KeyPair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateKeyPair draws a fresh keypair from r.
func GenerateKeyPair(r io.Reader) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, private: priv}, nil
}

// KeyPairFromSeed derives a keypair deterministically from a 32-byte seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{Public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// Sign signs msg with the private key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.private, msg)
}

// Verify reports whether sig is a valid signature of msg under pub.
func Verify(pub []byte, msg, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// LoadKeyPair reads a 32-byte hex or raw seed file written by the genesis
// ceremony and derives the validator keypair from it.
func LoadKeyPair(path string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed := raw
	if len(raw) >= 2*SeedSize && len(raw) <= 2*SeedSize+2 { // hex, maybe trailing newline
		decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode key file %s: %w", path, err)
		}
		seed = decoded
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("key file %s: expected %d-byte seed", path, SeedSize)
	}
	return KeyPairFromSeed(seed)
}
