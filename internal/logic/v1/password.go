package v1

import "golang.org/x/crypto/bcrypt"

// PasswordHasher wraps bcrypt behind a fixed, process-wide cost factor.
// The cost is the deliberate work-factor knob: raise BCRYPT_COST as hardware
// improves. Comparison is constant-time by construction of the algorithm.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher with the given cost, clamped to the
// range bcrypt accepts. A zero or out-of-range cost falls back to the
// library default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a salted hash from the plaintext password.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
