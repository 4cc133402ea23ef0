package crypto

import (
	"crypto/rand"
	"testing"
)

func TestKeyPairFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, SeedSize)
	seed[0] = 42

	kp1, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	kp2, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	if string(kp1.Public) != string(kp2.Public) {
		t.Fatal("same seed must derive the same public key")
	}
}

func TestSignVerify(t *testing.T) {
	kp, err := GenerateKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	msg := Hash([]byte("payload"))
	sig := kp.Sign(msg.Bytes())
	if len(sig) != SignatureSize {
		t.Fatalf("signature size = %d", len(sig))
	}
	if !Verify(kp.Public, msg.Bytes(), sig) {
		t.Fatal("signature should verify")
	}

	tampered := Hash([]byte("other"))
	if Verify(kp.Public, tampered.Bytes(), sig) {
		t.Fatal("signature must not verify for a different message")
	}
}

func TestHashIsStable(t *testing.T) {
	d1 := Hash([]byte("abc"))
	d2 := Hash([]byte("abc"))
	if d1 != d2 {
		t.Fatal("hash must be deterministic")
	}
	if len(d1.Bytes()) != DigestSize {
		t.Fatalf("digest size = %d", len(d1.Bytes()))
	}
}
