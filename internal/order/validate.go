package order

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

const (
	nameMinLen    = 2
	nameMaxLen    = 50
	addressMinLen = 10

	// MaxFileSize is the upload cap for a single model file.
	MaxFileSize = 50 << 20
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRe = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
)

var supportedFormats = map[string]bool{
	".stl": true,
	".obj": true,
	".3mf": true,
}

// ValidateName checks the customer name: 2-50 letters, spaces, hyphens and
// apostrophes. Returns the trimmed name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := len([]rune(name))
	if n < nameMinLen || n > nameMaxLen {
		return "", &ValidationError{Field: "name", Reason: "length"}
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' && r != '\'' {
			return "", &ValidationError{Field: "name", Reason: "charset"}
		}
	}
	return name, nil
}

// ValidateEmail checks the local@domain.tld shape. Returns the trimmed address.
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if !emailRe.MatchString(email) {
		return "", &ValidationError{Field: "email"}
	}
	return email, nil
}

// ValidatePhone checks an optional international number. An empty string is
// valid and stays empty. Returns the number stripped to digits and a leading +.
func ValidatePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '+' {
			return r
		}
		return -1
	}, phone)
	if !phoneRe.MatchString(cleaned) {
		return "", &ValidationError{Field: "phone"}
	}
	return cleaned, nil
}

// ValidateFileMeta checks the extension and size of an upload before any bytes
// leave the process.
func ValidateFileMeta(name string, size int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !supportedFormats[ext] {
		return &ValidationError{Field: "file", Reason: ReasonFormat}
	}
	if size > MaxFileSize {
		return &ValidationError{Field: "file", Reason: ReasonSize}
	}
	return nil
}

// ValidateAddress checks a delivery address: at least 10 non-whitespace
// characters. Returns the trimmed address.
func ValidateAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	n := 0
	for _, r := range addr {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	if n < addressMinLen {
		return "", &ValidationError{Field: "address", Reason: "length"}
	}
	return addr, nil
}
