package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var (
	// E.164: plus sign, leading digit 1-9, at most 15 digits total.
	phoneE164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

	numericRegex = regexp.MustCompile(`^[0-9]+$`)
)

// Required validates that a string is not empty after trimming whitespace.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.TrimSpace(value) != ""
		},
		Error: ValidationError{
			Field:   field,
			Message: "is required",
		},
	}
}

// ValidEmail validates that a string is a plausible email address.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if strings.TrimSpace(value) == "" {
				return false
			}
			addr, err := mail.ParseAddress(value)
			if err != nil {
				return false
			}
			// mail.ParseAddress accepts addresses without a dotted domain;
			// web signup forms should not.
			parts := strings.Split(addr.Address, "@")
			if len(parts) != 2 || parts[0] == "" {
				return false
			}
			domain := parts[1]
			if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
				return false
			}
			return true
		},
		Error: ValidationError{
			Field:   field,
			Message: "must be a valid email address",
		},
	}
}

// PhoneE164 validates that a string is a phone number in strict E.164
// format: "+" followed by up to 15 digits, first digit 1-9.
func PhoneE164(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return phoneE164Regex.MatchString(value)
		},
		Error: ValidationError{
			Field:   field,
			Message: "must be a phone number in E.164 format, e.g. +254712345678",
		},
	}
}

// OTPCode validates that a string is an all-digit one-time code of the
// given length.
func OTPCode(field, value string, length int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) == length && numericRegex.MatchString(value)
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be a %d-digit code", length),
		},
	}
}

// MinPasswordLength validates that a password has at least min characters.
func MinPasswordLength(field, value string, min int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) >= min
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters long", min),
		},
	}
}

// PasswordsMatch validates that a password confirmation matches.
func PasswordsMatch(field, password, confirmation string) Rule {
	return Rule{
		Check: func() bool {
			return password == confirmation
		},
		Error: ValidationError{
			Field:   field,
			Message: "passwords do not match",
		},
	}
}
