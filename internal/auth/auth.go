package auth

import "golang.org/x/crypto/bcrypt"

// HashToken generates a bcrypt hash of an admin API token, suitable for the
// admin.token_hash config key.
func HashToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), 12)
	return string(bytes), err
}

// CheckToken compares a presented token with the stored bcrypt hash.
// It returns true if the token matches.
func CheckToken(token, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}
