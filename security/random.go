package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomHex returns n bytes from crypto/rand encoded as 2n lowercase hex characters
func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
