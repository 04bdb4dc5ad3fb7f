package auth

import "golang.org/x/crypto/bcrypt"

// Passwords hashes and checks user passwords with bcrypt.
type Passwords struct {
	cost int
}

// NewPasswords clamps cost into bcrypt's accepted range.
func NewPasswords(cost int) *Passwords {
	switch {
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Passwords{cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (p *Passwords) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), p.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches reports whether plain hashes to hashed.
func (p *Passwords) Matches(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
