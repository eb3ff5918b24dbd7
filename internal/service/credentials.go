package service

import (
	"context"
	"strings"

	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost is lowered by tests.
var passwordCost = bcrypt.DefaultCost

const invalidCredentials = "The provided credentials are incorrect."

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateRegistration checks the fields shared by both registration flows
// and returns the normalised email.
func validateRegistration(name, email, password string) (string, error) {
	if err := validation.ValidateName(name); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	email = validation.NormalizeEmail(email)
	if email == "" {
		return "", models.NewValidationError("The email field is required.")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return email, nil
}

func ensureEmailFree(ctx context.Context, users repository.UserRepository, email string) error {
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return models.NewValidationError("The email has already been taken.")
	}
	return nil
}

// authenticate looks up email and checks password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func authenticate(ctx context.Context, users repository.UserRepository, email, password string) (*models.User, error) {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, models.NewValidationError("The email and password fields are required.")
	}
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !checkPassword(user.Password, password) {
		return nil, models.NewAuthenticationError(invalidCredentials)
	}
	return user, nil
}

func mapDuplicateUser(err error) error {
	if models.IsCode(err, models.CodeDuplicate) {
		return models.NewValidationError("The email has already been taken.")
	}
	return err
}

func trimmedName(name string) string {
	return strings.TrimSpace(name)
}
