package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/productr-api/internal/domain"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[0-9]{10,15}$`)
)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to Struct.
var v = validator.New()

func init() {
	// "identifier": an email address or a 10-15 digit phone number.
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return Classify(fl.Field().String()) != domain.KindInvalid
	})
}

// Normalize trims the surrounding whitespace of a raw identifier.
func Normalize(raw string) string {
	return strings.TrimSpace(raw)
}

// Classify reports whether raw is an email address, a phone number, or neither.
func Classify(raw string) domain.IdentifierKind {
	s := Normalize(raw)
	switch {
	case emailRe.MatchString(s):
		return domain.KindEmail
	case phoneRe.MatchString(s):
		return domain.KindPhone
	default:
		return domain.KindInvalid
	}
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
