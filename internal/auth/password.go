package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

const bcryptCost = 10

// HashPassword rejects passwords bcrypt cannot hash as a validation error.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.Invalid("Password must be at most 72 bytes")
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
