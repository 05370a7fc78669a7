package crypto

import (
	"encoding/hex"
	"testing"
)

// TestDoubleHash checks SHA-256d against values derived from the
// FIPS 180-4 SHA-256 vectors.
func TestDoubleHash(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // internal byte order hex
	}{
		{"empty", "", "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456"},
		{"abc", "abc", "4f8b42c22dd3729b519ba6f68d2da7cc5b2d606d05daed5ad5128cc03e6c6358"},
		{"hello", "hello", "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DoubleHash([]byte(tt.in))
			if hex.EncodeToString(got[:]) != tt.want {
				t.Errorf("DoubleHash(%q) = %x, want %s", tt.in, got[:], tt.want)
			}
		})
	}
}

func TestDoubleHashConcat(t *testing.T) {
	a := DoubleHash([]byte("a"))
	b := DoubleHash([]byte("b"))

	var joined [64]byte
	copy(joined[:32], a[:])
	copy(joined[32:], b[:])
	want := DoubleHash(joined[:])

	if got := DoubleHashConcat(a, b); got != want {
		t.Errorf("DoubleHashConcat = %x, want %x", got[:], want[:])
	}
}

func TestChecksum(t *testing.T) {
	h := DoubleHash(nil)
	got := Checksum(nil)
	for i := 0; i < 4; i++ {
		if got[i] != h[i] {
			t.Fatalf("Checksum(nil) = %x, want first four bytes of %x", got, h[:])
		}
	}
}
