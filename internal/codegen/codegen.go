// Package codegen produces fixed-length coupon codes. Codes are derived by
// encrypting a (batch, index) sequence with AES, so a batch can be generated
// deterministically without coordination and without storing a counter.
package codegen

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"
)

// Alphabet is the 31-character pool codes are drawn from. Visually ambiguous
// characters (0/O, 1/I/L) are excluded so codes survive being read aloud or
// retyped from paper.
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// CodeLength is the fixed length of every generated code.
const CodeLength = 8

// Generator derives coupon codes for one batch.
type Generator struct {
	batchID int64
}

// NewGenerator creates a generator for the given batch
func NewGenerator(batchID int64) *Generator {
	return &Generator{batchID: batchID}
}

// Code generates the code for one coupon index within the batch.
func (g *Generator) Code(index uint64) (string, error) {
	pool := []rune(Alphabet)
	base := uint64(len(pool))

	seq := g.sequence(index)

	block, err := aes.NewCipher(g.batchKey())
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	// 128-bit plaintext: high 64 bits zero, low 64 bits = seq
	var plain [16]byte
	binary.BigEndian.PutUint64(plain[8:], seq)

	var cipher [16]byte
	block.Encrypt(cipher[:], plain[:])

	// Map the low 64 cipher bits onto CodeLength pool characters.
	v := binary.BigEndian.Uint64(cipher[8:])
	body := make([]rune, CodeLength)
	for i := CodeLength - 1; i >= 0; i-- {
		body[i] = pool[v%base]
		v /= base
	}

	return string(body), nil
}

// sequence combines batch id and coupon index into a unique 64-bit value:
// high 32 bits batch, low 32 bits index.
func (g *Generator) sequence(index uint64) uint64 {
	return (uint64(g.batchID) << 32) | (index & 0xFFFFFFFF)
}

// batchKey derives a deterministic 16-byte AES key for the batch.
func (g *Generator) batchKey() []byte {
	key := make([]byte, 16)
	hash := uint64(g.batchID)

	for i := 0; i < 16; i++ {
		key[i] = byte((hash >> (i % 8)) ^ uint64(i*7))
	}
	return key
}
