package authkit

import "golang.org/x/crypto/bcrypt"

// VerifyPassword describes the verifypassword operation and its observable behavior.
//
// VerifyPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A nil account, an empty stored hash, or an empty supplied password all
// verify as false.
func VerifyPassword(account *Account, supplied string) bool {
	if account == nil || account.PasswordHash == "" || supplied == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(supplied)) == nil
}

// HashPassword describes the hashpassword operation and its observable behavior.
//
// HashPassword may return an error when input validation, dependency calls, or security checks fail.
// HashPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAccountUsable describes the checkaccountusable operation and its observable behavior.
//
// CheckAccountUsable may return an error when input validation, dependency calls, or security checks fail.
// CheckAccountUsable does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CheckAccountUsable(account *Account) error {
	if account == nil {
		return ErrUserNotFound
	}
	if account.Disabled {
		return ErrAccountDisabled
	}
	return nil
}
