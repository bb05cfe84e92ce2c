package localstore

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mbelkin/cardsync/internal/common"
)

// Cursor formats (before base64):
//
//	keyset: "k|<occurred_on unix-ms>|<uuid>"
//	offset: "o|<offset>"
//
// The mode tag keeps a keyset cursor from ever being replayed as an offset
// one. Cursors carry no filter; a cursor issued for filter-set F is only
// valid against the same F, which is the caller's responsibility.
type cursor struct {
	keyset bool
	ms     int64
	id     string
	offset int
}

func encodeKeysetCursor(ms int64, id string) string {
	raw := fmt.Sprintf("k|%d|%s", ms, id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// OffsetCursor encodes a raw row offset as an opaque cursor. Page-number
// pagination builds its cursors through this.
func OffsetCursor(offset int) string {
	if offset < 0 {
		offset = 0
	}
	raw := fmt.Sprintf("o|%d", offset)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses an opaque cursor. An empty string is the start of the
// scan. Anything malformed maps to common.ErrInvalidCursor.
func decodeCursor(s string) (cursor, error) {
	if s == "" {
		return cursor{keyset: true}, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: %v", common.ErrInvalidCursor, err)
	}

	parts := strings.Split(string(b), "|")
	switch {
	case len(parts) == 3 && parts[0] == "k":
		ms, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return cursor{}, fmt.Errorf("%w: bad timestamp", common.ErrInvalidCursor)
		}
		if _, err := uuid.Parse(parts[2]); err != nil {
			return cursor{}, fmt.Errorf("%w: bad id", common.ErrInvalidCursor)
		}
		return cursor{keyset: true, ms: ms, id: parts[2]}, nil

	case len(parts) == 2 && parts[0] == "o":
		off, err := strconv.Atoi(parts[1])
		if err != nil || off < 0 {
			return cursor{}, fmt.Errorf("%w: bad offset", common.ErrInvalidCursor)
		}
		return cursor{offset: off}, nil

	default:
		return cursor{}, fmt.Errorf("%w: unknown format", common.ErrInvalidCursor)
	}
}
