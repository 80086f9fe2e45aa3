package auth

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordPolicy checks new passwords against a configured pattern.
type PasswordPolicy struct {
	re *regexp.Regexp
}

func NewPasswordPolicy(pattern string) (*PasswordPolicy, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid password policy: %w", err)
	}
	return &PasswordPolicy{re: re}, nil
}

// Allows reports whether password satisfies the policy. bcrypt ignores
// input past 72 bytes, so longer passwords are refused.
func (p *PasswordPolicy) Allows(password string) bool {
	return len(password) <= 72 && p.re.MatchString(password)
}
