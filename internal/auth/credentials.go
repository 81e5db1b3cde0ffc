package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"campusattend/internal/apperr"
)

// ErrBadCredentials is returned for any username/password mismatch; it
// never reveals which half was wrong.
var ErrBadCredentials = apperr.New(apperr.Unauthorized, "Invalid username or password")

// VerifyCredentials checks a login against the static credential table.
// Stored secrets may be bcrypt hashes or, for dev setups, plain passwords.
// Returns the role for the session token.
func VerifyCredentials(table map[string]string, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperr.New(apperr.Validation, "Username and password are required")
	}
	stored, ok := table[username]
	if !ok {
		return "", ErrBadCredentials
	}
	if isBcryptHash(stored) {
		if bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) != nil {
			return "", ErrBadCredentials
		}
	} else if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return "", ErrBadCredentials
	}
	return RoleFor(username), nil
}

// RoleFor maps a username to its role name.
func RoleFor(username string) string {
	if username == "superadmin" {
		return "superadmin"
	}
	return "admin"
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
