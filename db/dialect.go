package db

import (
	"database/sql/driver"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/tempo/errors"
)

// Dialect names a supported SQL backend. Its value is the database/sql
// driver name.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// TimeLayout is how timestamps are stored in SQLite TEXT columns.
// Always UTC with fixed-width fractions so lexical order equals time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	default:
		return "", errors.NewInvalidRequestError("unsupported database driver %q (supported: sqlite3, postgres)", driver)
	}
}

// Rebind rewrites '?' placeholders into the dialect's native form.
// Queries are written once with '?' and rebound for Postgres ($1, $2, ...).
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TimeArg converts t to the argument form the dialect stores.
func (d Dialect) TimeArg(t time.Time) interface{} {
	if d == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(TimeLayout)
}

// Time scans a timestamp column from either dialect. SQLite yields TEXT,
// Postgres yields time.Time. NULL leaves Valid false.
type Time struct {
	Time  time.Time
	Valid bool
}

// sqliteDriverLayout is what go-sqlite3 produces when it formats time.Time itself.
const sqliteDriverLayout = "2006-01-02 15:04:05.999999999-07:00"

// Scan implements sql.Scanner.
func (t *Time) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return errors.Newf("cannot scan %T into db.Time", value)
	}
}

func (t *Time) parse(s string) error {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, sqliteDriverLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return errors.Newf("unparseable timestamp %q", s)
}

// Value implements driver.Valuer using the SQLite text form.
func (t Time) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time.UTC().Format(TimeLayout), nil
}

// Ptr returns a pointer to the scanned time, or nil for NULL.
func (t Time) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
