package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeCharset is the alphabet of human-typed validation codes.
const CodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns a uniformly random string of length n over CodeCharset.
func RandomCode(n int) (string, error) {
	return RandomString(n, CodeCharset)
}

// RandomString draws n characters from charset using crypto/rand.
func RandomString(n int, charset string) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid code length %d", n)
	}
	if charset == "" {
		return "", fmt.Errorf("charset is required")
	}
	alphabet := []rune(charset)
	max := big.NewInt(int64(len(alphabet)))
	result := make([]rune, n)
	for i := range result {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		result[i] = alphabet[idx.Int64()]
	}
	return string(result), nil
}
