package approval

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of an approval token; the hex form is twice as long
const TokenBytes = 32

// NewToken returns a random 64-character hex approval token
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate approval token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
