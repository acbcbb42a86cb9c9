package utils

import (
	"crypto/rand"
	"math/big"
)

const alphanumericCharset = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomString returns a cryptographically random alphanumeric string of the
// given length.
func RandomString(length int) string {
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(alphanumericCharset))))
		result[i] = alphanumericCharset[n.Int64()]
	}
	return string(result)
}
