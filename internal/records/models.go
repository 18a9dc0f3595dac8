package records

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"scanmatch/internal/matcher"
)

var (
	// ErrAlreadyEnrolled reports an Enroll for a name that already exists.
	ErrAlreadyEnrolled = errors.New("user already enrolled")
	// ErrNotEnrolled reports an Update or Remove for an unknown name.
	ErrNotEnrolled = errors.New("user not enrolled")
	// ErrInvalidName reports an empty or oversized name.
	ErrInvalidName = errors.New("invalid user name")
)

const maxNameLength = 128

// Entry is one enrolled user.
type Entry struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Template    *matcher.Template
	// Score is set only on entries returned by Match.
	Score int
}

// NormalizeName trims surrounding space and folds the name to NFC so the
// same visible name always maps to the same key.
func NormalizeName(name string) (string, error) {
	cleaned := norm.NFC.String(strings.TrimSpace(name))
	if cleaned == "" {
		return "", ErrInvalidName
	}
	if len([]rune(cleaned)) > maxNameLength {
		return "", ErrInvalidName
	}
	return cleaned, nil
}
