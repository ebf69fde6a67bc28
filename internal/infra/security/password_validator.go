package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const defaultMinPasswordLength = 8

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules and returns the
// first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// DefaultPasswordValidator enforces the platform baseline: minimum
// length, one uppercase, one lowercase, one digit.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
	)
}

// OperatorPasswordValidator adds a zxcvbn strength check on top of the
// baseline for administrative accounts. Known user inputs (name, email)
// weaken the score when reused in the password.
func OperatorPasswordValidator(userInputs ...string) *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
		RequirePasswordStrengthRule(2, userInputs...),
	)
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("la contrasena debe tener al menos %d caracteres", min),
			}
		}
		return nil
	})
}

// RequireUppercaseRule ensures at least one uppercase letter.
func RequireUppercaseRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsUpper(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "uppercase",
			Message: "la contrasena debe contener al menos una mayuscula",
		}
	})
}

// RequireLowercaseRule ensures at least one lowercase letter.
func RequireLowercaseRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsLower(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "lowercase",
			Message: "la contrasena debe contener al menos una minuscula",
		}
	})
}

// RequireDigitRule ensures at least one digit.
func RequireDigitRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "digit",
			Message: "la contrasena debe contener al menos un numero",
		}
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "la contrasena es demasiado debil",
		}
	})
}
