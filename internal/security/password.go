package security

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

type PasswordPolicy struct {
	MinLength              int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:              6,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	}
}

type PolicyViolation struct {
	Code        string
	Description string
}

// Check reports every rule the password breaks, in a stable order.
func (p PasswordPolicy) Check(plain string) []PolicyViolation {
	var out []PolicyViolation
	var digit, lower, upper, nonAlphaNum bool

	for _, r := range plain {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r):
			nonAlphaNum = true
		}
	}

	if len([]rune(plain)) < p.MinLength {
		out = append(out, PolicyViolation{
			Code:        "PasswordTooShort",
			Description: fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength),
		})
	}
	if p.RequireNonAlphanumeric && !nonAlphaNum {
		out = append(out, PolicyViolation{
			Code:        "PasswordRequiresNonAlphanumeric",
			Description: "Passwords must have at least one non alphanumeric character.",
		})
	}
	if p.RequireDigit && !digit {
		out = append(out, PolicyViolation{
			Code:        "PasswordRequiresDigit",
			Description: "Passwords must have at least one digit ('0'-'9').",
		})
	}
	if p.RequireLowercase && !lower {
		out = append(out, PolicyViolation{
			Code:        "PasswordRequiresLower",
			Description: "Passwords must have at least one lowercase ('a'-'z').",
		})
	}
	if p.RequireUppercase && !upper {
		out = append(out, PolicyViolation{
			Code:        "PasswordRequiresUpper",
			Description: "Passwords must have at least one uppercase ('A'-'Z').",
		})
	}

	return out
}
