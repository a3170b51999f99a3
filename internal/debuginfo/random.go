package debuginfo

import "crypto/rand"

// RandomSource supplies cryptographically strong random bytes for the
// generated fallback identifiers. It exists as a port so tests can
// substitute a deterministic source and assert exact output strings.
type RandomSource interface {
	Bytes(n int) ([]byte, error)
}

// CryptoRandom reads from the operating system CSPRNG.
type CryptoRandom struct{}

func (CryptoRandom) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
