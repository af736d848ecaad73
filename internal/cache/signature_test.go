package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureNormalization(t *testing.T) {
	cfg := DefaultBucketConfig()

	tests := []struct {
		name  string
		a     [3]string // description, merchant pairs compared below
		b     [3]string
		aAmt  float64
		bAmt  float64
		equal bool
	}{
		{
			name:  "case and whitespace are folded",
			a:     [3]string{"WILSON  PARKING", "WILSON PARKING"},
			b:     [3]string{"wilson parking", "wilson  parking"},
			aAmt:  25.00,
			bAmt:  25.00,
			equal: true,
		},
		{
			name:  "cent noise shares a bucket",
			a:     [3]string{"COFFEE SHOP", ""},
			b:     [3]string{"COFFEE SHOP", ""},
			aAmt:  4.90,
			bAmt:  5.10,
			equal: true,
		},
		{
			name:  "materially different amounts stay apart",
			a:     [3]string{"COFFEE SHOP", ""},
			b:     [3]string{"COFFEE SHOP", ""},
			aAmt:  5.00,
			bAmt:  45.00,
			equal: false,
		},
		{
			name:  "large amounts use the wide bucket",
			a:     [3]string{"FLIGHTS", ""},
			b:     [3]string{"FLIGHTS", ""},
			aAmt:  496.00,
			bAmt:  503.00,
			equal: true,
		},
		{
			name:  "debits and credits never collide",
			a:     [3]string{"TRANSFER", ""},
			b:     [3]string{"TRANSFER", ""},
			aAmt:  50.00,
			bAmt:  -50.00,
			equal: false,
		},
		{
			name:  "different descriptions stay apart",
			a:     [3]string{"COFFEE SHOP", ""},
			b:     [3]string{"BOOK SHOP", ""},
			aAmt:  5.00,
			bAmt:  5.00,
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sigA := Signature(tt.a[0], tt.aAmt, tt.a[1], cfg)
			sigB := Signature(tt.b[0], tt.bAmt, tt.b[1], cfg)
			if tt.equal {
				assert.Equal(t, sigA, sigB)
			} else {
				assert.NotEqual(t, sigA, sigB)
			}
		})
	}
}

func TestSignatureIsHex(t *testing.T) {
	sig := Signature("ANY", 1.0, "", DefaultBucketConfig())
	assert.Len(t, sig, 64)
}

func TestBucketAmount(t *testing.T) {
	cfg := DefaultBucketConfig()

	tests := []struct {
		amount float64
		want   int64
	}{
		{0, 0},
		{4.40, 4},
		{4.60, 5},
		{99.00, 99},
		{105.00, 110},
		{494.00, 490},
		{-25.30, -25},
		{-105.00, -110},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bucketAmount(tt.amount, cfg), "amount %.2f", tt.amount)
	}
}

func TestBucketAmountZeroConfigDefaults(t *testing.T) {
	// A zero config must not divide by zero.
	assert.Equal(t, int64(42), bucketAmount(42.2, BucketConfig{}))
}
