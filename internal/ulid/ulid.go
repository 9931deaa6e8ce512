// Package ulid wraps github.com/oklog/ulid/v2 with prefixed, sortable
// identifiers for sync log rows and request tracing.
package ulid

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// PrefixSync tags sync log rows
	PrefixSync = "sync"
	// PrefixRequest tags HTTP request ids on the remote store
	PrefixRequest = "req"

	// PrefixSeparator separates the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ULID is a ulid.ULID with an optional prefix
type ULID struct {
	ulid.ULID
	prefix string
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a prefix
func GenerateWithPrefix(prefix string) ULID {
	id := NewWithTime(time.Now())
	id.prefix = prefix
	return id
}

// NewWithTime creates a new ULID for a specific timestamp. Calls within the
// same millisecond stay monotonic.
func NewWithTime(t time.Time) ULID {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return ULID{id, ""}
}

// Parse accepts both plain ("01AN4Z07BY79KA1307SR9X4MV3") and prefixed
// ("sync-01AN4Z07BY79KA1307SR9X4MV3") forms
func Parse(id string) (ULID, error) {
	prefix, rawID := "", id
	if i := strings.LastIndex(id, PrefixSeparator); i >= 0 {
		prefix, rawID = id[:i], id[i+1:]
	}

	parsed, err := ulid.Parse(rawID)
	if err != nil {
		return ULID{}, fmt.Errorf("parsing ulid %q: %w", id, err)
	}
	return ULID{parsed, prefix}, nil
}

// IsZero reports whether u is the zero value
func (u ULID) IsZero() bool {
	return u.ULID == ulid.ULID{}
}

// String returns "prefix-ulid", or the bare ULID when there is no prefix
func (u ULID) String() string {
	if u.prefix != "" {
		return u.prefix + PrefixSeparator + u.ULID.String()
	}
	return u.ULID.String()
}

// Value implements driver.Valuer
func (u ULID) Value() (driver.Value, error) {
	return u.String(), nil
}

// Scan implements sql.Scanner
func (u *ULID) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ULID", src)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// RequestID generates an id for an incoming HTTP request
func RequestID() string {
	return GenerateWithPrefix(PrefixRequest).String()
}
