package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/store"
)

var codePattern = regexp.MustCompile(`^(WH|EQ|INV)-\d{3,}$`)

// resolveRef finds a record by human-readable code ("WH-001") or by row id.
// Anything that is neither a code nor a UUID is tried as a code. found is
// false when no record matches.
func resolveRef[T any](ctx context.Context, ref string, byID, byCode func(context.Context, string) (T, error)) (record T, found bool, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return record, false, nil
	}

	lookup := byCode
	if !codePattern.MatchString(ref) {
		if _, parseErr := uuid.Parse(ref); parseErr == nil {
			lookup = byID
		}
	}

	record, err = lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return record, false, nil
		}
		return record, false, err
	}
	return record, true, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.BadRequest("Invalid %s", field)
}

// mapNotFound turns store.ErrNotFound into a NotFound error with message and
// wraps anything else as internal.
func mapNotFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("%s", message)
	}
	return apperr.Internal(err, message)
}
