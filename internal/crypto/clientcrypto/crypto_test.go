package clientcrypto

import (
	"bytes"
	"crypto/subtle"
	"testing"
)

func TestRand_LengthUniq(t *testing.T) {
	t.Parallel()
	const n = 48
	a, err := Rand(n)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := Rand(n)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}

func TestDeriveKey_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	pw := []byte("field-laptop")
	k1 := DeriveKey(pw, []byte("salt-1"))
	k2 := DeriveKey(pw, []byte("salt-1"))
	if subtle.ConstantTimeCompare(k1, k2) != 1 {
		t.Fatalf("DeriveKey not deterministic")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKey(pw, []byte("salt-2"))) != 0 {
		t.Fatalf("DeriveKey must change with salt")
	}
	if len(k1) != KeyLen {
		t.Fatalf("key len=%d", len(k1))
	}
}

func TestSealOpen_RoundTripAndTamper(t *testing.T) {
	t.Parallel()
	key := DeriveKey([]byte("pw"), []byte("salt"))
	aad := []byte("token")
	pt := []byte("eyJhbGciOi...")

	blob, err := Seal(key, aad, pt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := Open(key, aad, blob)
	if err != nil || !bytes.Equal(got, pt) {
		t.Fatalf("Open: %q %v", got, err)
	}

	if _, err := Open(key, []byte("user"), blob); err == nil {
		t.Fatalf("Open with other aad must fail")
	}
	wrong := DeriveKey([]byte("pw2"), []byte("salt"))
	if _, err := Open(wrong, aad, blob); err == nil {
		t.Fatalf("Open with wrong key must fail")
	}
	blob[len(blob)-1] ^= 0xFF
	if _, err := Open(key, aad, blob); err == nil {
		t.Fatalf("Open of tampered blob must fail")
	}
	if _, err := Open(key, aad, []byte{1, 2}); err == nil {
		t.Fatalf("Open of short blob must fail")
	}
}
