package authn

import "golang.org/x/crypto/bcrypt"

// HashPassword and CheckPassword are the external password-hashing
// collaborator spec.md §1 names out of the core's scope.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
