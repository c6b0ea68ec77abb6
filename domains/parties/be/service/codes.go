package service

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// Codes are 8 uppercase alphanumerics shown as AAAA-BBBB, 36^8 combinations
// per tenant.
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// NewCode returns a random party code in canonical AAAA-BBBB form.
func NewCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf[:4]) + "-" + string(buf[4:])
}

// NormalizeCode maps user input ("ab12cd34", "AB12-CD34", " ab12-cd34 ") to
// canonical form. Returns false when the input cannot be a code.
func NormalizeCode(input string) (string, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(input))
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	if len(cleaned) != 8 {
		return "", false
	}
	code := cleaned[:4] + "-" + cleaned[4:]
	if !codePattern.MatchString(code) {
		return "", false
	}
	return code, true
}
