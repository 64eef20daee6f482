package hub

import (
	"crypto/rand"
	"fmt"
)

// CodeAlphabet leaves out I, O, 0 and 1 so codes read cleanly off a TV.
const (
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 4
)

// CodeGen produces candidate room codes. The registry retries on collision.
type CodeGen func() (string, error)

// RandomCode draws CodeLength characters uniformly from CodeAlphabet.
func RandomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	// len(CodeAlphabet) is 32, so masking keeps the draw uniform.
	for i, b := range buf {
		buf[i] = CodeAlphabet[b&31]
	}
	return string(buf), nil
}
