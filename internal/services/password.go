package services

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

//go:embed common_passwords.txt
var commonPasswordList string

const (
	passwordMinLength     = 8
	passwordMaxSimilarity = 0.7
)

var (
	commonPasswords   = loadCommonPasswords(commonPasswordList)
	attributeSplitter = regexp.MustCompile(`\W+`)
)

func loadCommonPasswords(list string) map[string]struct{} {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		if line := strings.ToLower(strings.TrimSpace(scanner.Text())); line != "" {
			set[line] = struct{}{}
		}
	}
	return set
}

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *PasswordHasher) Verify(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// UserAttribute is a piece of account data a password must not resemble.
type UserAttribute struct {
	Label string
	Value string
}

// ValidatePassword runs the account password rules and returns every failure.
func ValidatePassword(password string, attrs ...UserAttribute) []string {
	var problems []string

	if msg := similarityProblem(password, attrs); msg != "" {
		problems = append(problems, msg)
	}
	if utf8.RuneCountInString(password) < passwordMinLength {
		problems = append(problems, fmt.Sprintf(
			"This password is too short. It must contain at least %d characters.", passwordMinLength))
	}
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		problems = append(problems, "This password is too common.")
	}
	if isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	return problems
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func similarityProblem(password string, attrs []UserAttribute) string {
	lowered := strings.ToLower(password)
	for _, attr := range attrs {
		if attr.Value == "" {
			continue
		}
		value := strings.ToLower(attr.Value)
		if exceedsLengthRatio(lowered, value) {
			continue
		}
		parts := append(attributeSplitter.Split(value, -1), value)
		for _, part := range parts {
			if part == "" {
				continue
			}
			if quickRatio(lowered, part) >= passwordMaxSimilarity {
				return fmt.Sprintf("The password is too similar to the %s.", attr.Label)
			}
		}
	}
	return ""
}

// exceedsLengthRatio skips attributes far too short to make a long password similar.
func exceedsLengthRatio(password, value string) bool {
	pwdLen := utf8.RuneCountInString(password)
	valueLen := utf8.RuneCountInString(value)
	bound := passwordMaxSimilarity / 2 * float64(pwdLen)
	return pwdLen >= 10*valueLen && float64(valueLen) < bound
}

// quickRatio is an upper bound on the matching-blocks similarity of a and b:
// twice the size of their common character multiset over the combined length.
func quickRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}

	avail := make(map[rune]int)
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}
