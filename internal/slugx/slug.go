// Package slugx derives human-readable project slugs from titles.
package slugx

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/youthforge/forge/internal/models"
)

// Checker reports whether a slug is free. The adapter's slug-filtered feed
// query satisfies this.
type Checker func(ctx context.Context, slug string) (bool, error)

const maxAttempts = 5

// Slugify lowercases the value, collapses every non-alphanumeric run into a
// single '-', trims leading/trailing dashes, and caps the length.
func Slugify(value string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if len(s) > models.SlugMaxLen {
		s = strings.TrimRight(s[:models.SlugMaxLen], "-")
	}
	return s
}

// EnsureUnique slugifies the title and, when the candidate is taken, retries
// with a short random suffix up to a few times before giving up.
func EnsureUnique(ctx context.Context, title string, available Checker) (string, error) {
	candidate := Slugify(title)
	if candidate == "" {
		candidate = fmt.Sprintf("project-%d", time.Now().UnixMilli())
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		free, err := available(ctx, candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
		candidate = Slugify(fmt.Sprintf("%s-%d", candidate, rand.Intn(1000)))
	}

	return "", fmt.Errorf("unable to generate a unique slug for %q", title)
}
