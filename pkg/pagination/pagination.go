// Package pagination implements keyset paging over (created_at DESC, id DESC)
// with opaque cursor tokens.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var errMalformed = errors.New("malformed cursor")

// Cursor identifies the last row of a page; the next page starts after it.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode renders the cursor as a URL-safe token.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 36) + "." + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Token encodes next, or returns "" on the last page.
func Token(next *Cursor) string {
	if next == nil {
		return ""
	}
	return next.Encode()
}

// ParseCursor decodes a token produced by Encode. A blank token yields a nil
// cursor, meaning the first page.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, errMalformed
	}
	ns, err := strconv.ParseInt(nanos, 36, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", errMalformed, err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", errMalformed, err)
	}
	return &Cursor{CreatedAt: time.Unix(0, ns).UTC(), ID: parsed}, nil
}

// NormalizeLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is one past the page size so the query reveals whether a
// next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Keyset orders q newest first, resumes after cursor and fetches one row past
// the page. Pair it with Trim.
func Keyset(q *gorm.DB, cursor *Cursor, limit int) *gorm.DB {
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	return q.Order("created_at DESC, id DESC").Limit(LimitWithBuffer(limit))
}

// Trim cuts rows fetched with LimitWithBuffer down to one page. When more rows
// exist it returns the cursor of the last row kept, which Keyset resumes after.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	size := NormalizeLimit(limit)
	if len(rows) <= size {
		return rows, nil
	}
	next := key(rows[size-1])
	return rows[:size], &next
}
