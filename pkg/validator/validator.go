// Package validator checks request structs against `validate` tags and
// normalises user supplied strings.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateStruct validates a struct based on validate tags. Supported rules
// are required, email, singleline, min=N and max=N (lengths in characters).
// Fields are reported under their json name.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	var problems []string
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}

		for _, rule := range strings.Split(tag, ",") {
			if err := validateField(fieldName(field), v.Field(i), rule); err != nil {
				problems = append(problems, err.Error())
				break
			}
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return f.Name
}

// validateField validates a single field based on a rule
func validateField(name string, value reflect.Value, rule string) error {
	switch {
	case rule == "required":
		if isZero(value) {
			return fmt.Errorf("%s is required", name)
		}
	case rule == "email":
		if value.Kind() == reflect.String && value.String() != "" {
			if err := ValidateEmail(value.String()); err != nil {
				return fmt.Errorf("%s must be a valid email", name)
			}
		}
	case rule == "singleline":
		if value.Kind() == reflect.String && ValidateSingleLine(value.String()) != nil {
			return fmt.Errorf("%s must not contain control characters", name)
		}
	case strings.HasPrefix(rule, "min="), strings.HasPrefix(rule, "max="):
		limit, err := strconv.Atoi(rule[4:])
		if err != nil {
			return fmt.Errorf("invalid rule %q on %s", rule, name)
		}
		if value.Kind() != reflect.String {
			return nil
		}
		n := utf8.RuneCountInString(value.String())
		if rule[:3] == "min" && n < limit {
			return fmt.Errorf("%s must be at least %d characters", name, limit)
		}
		if rule[:3] == "max" && n > limit {
			return fmt.Errorf("%s must be at most %d characters", name, limit)
		}
	}
	return nil
}

// isZero checks if a value is zero/empty. Whitespace-only strings are empty.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateSingleLine rejects text containing line breaks or other control
// characters
func ValidateSingleLine(s string) error {
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return errors.New("contains control characters")
	}
	return nil
}

// SanitizeString removes null bytes and surrounding whitespace
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(SanitizeString(email))
}
