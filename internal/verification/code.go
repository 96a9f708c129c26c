package verification

import (
	"crypto/rand"
)

const codeDigits = 6

// GenerateCode returns a uniformly random 6-digit verification code as a
// string. Leading zeros are allowed (e.g. "042137"). Uses crypto/rand.
func GenerateCode() (string, error) {
	b := make([]byte, codeDigits)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, codeDigits)
	for i := 0; i < codeDigits; i++ {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}
