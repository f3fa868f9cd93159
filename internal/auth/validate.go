package auth

import (
	"net/mail"
	"unicode"

	"github.com/openclinic/telemed-portal/internal/http/respond"
)

// ValidEmail reports whether s parses as an address.
func ValidEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}

// ValidatePassword applies the account password policy: at least six
// characters with a digit, a lowercase letter, an uppercase letter and a
// special character. Returns one field error per missing rule.
func ValidatePassword(pw string) []respond.FieldError {
	var errs []respond.FieldError
	if len(pw) < 6 {
		errs = append(errs, respond.FieldError{Msg: "Please enter a password with 6 or more characters", Param: "password"})
	}
	var hasDigit, hasLower, hasUpper, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		default:
			hasSpecial = true
		}
	}
	if !hasDigit {
		errs = append(errs, respond.FieldError{Msg: "Please include a number in your password", Param: "password"})
	}
	if !hasLower {
		errs = append(errs, respond.FieldError{Msg: "Please include a lowercase letter in your password", Param: "password"})
	}
	if !hasUpper {
		errs = append(errs, respond.FieldError{Msg: "Please include an uppercase letter in your password", Param: "password"})
	}
	if !hasSpecial {
		errs = append(errs, respond.FieldError{Msg: "Please include a special character in your password", Param: "password"})
	}
	return errs
}
