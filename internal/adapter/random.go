package adapter

import (
	"crypto/rand"
	"math/big"
)

// Random defines an interface for drawing uniform integers to enable mocking
//
//go:generate mockgen -source=random.go -destination=../mocks/random.go -package=mocks -mock_names=Random=MockRandom
type Random interface {
	// IntN returns a uniform integer in [0, n)
	IntN(n int) (int, error)
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// NewRandom creates a new crypto-backed random source
func NewRandom() Random {
	return &CryptoRandom{}
}

func (r *CryptoRandom) IntN(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
