// Package auth hashes passwords and issues session tokens.
package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPasswordHash reports whether password matches hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// dummyHash is compared against when a login names an unknown user so the
// response time does not reveal whether the email is registered.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("fintrack-dummy-password"), bcrypt.DefaultCost)

// CompareDummy burns the same work as CheckPasswordHash and always fails.
func CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
