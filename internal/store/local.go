package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"hostbot/internal/dbtask"
)

const localSchema = `
CREATE TABLE IF NOT EXISTS iptocountry (
	ip1     INTEGER NOT NULL,
	ip2     INTEGER NOT NULL,
	country TEXT NOT NULL,
	PRIMARY KEY (ip1, ip2)
);`

// UnknownCountry is reported for addresses outside every imported range.
const UnknownCountry = "??"

// LocalDB is the embedded SQLite database holding the ip-to-country table.
type LocalDB struct {
	db *sql.DB
}

func OpenLocal(path string) (*LocalDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}
	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating local schema: %w", err)
	}
	return &LocalDB{db: db}, nil
}

func (l *LocalDB) Close() error {
	return l.db.Close()
}

// Dialer leases single connections from the local database for a dbtask pool.
func (l *LocalDB) Dialer() dbtask.Dialer {
	return func(ctx context.Context) (dbtask.Conn, error) {
		c, err := l.db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return localConn{c}, nil
	}
}

type localConn struct {
	*sql.Conn
}

func (c localConn) Ping(ctx context.Context) error { return c.PingContext(ctx) }
func (c localConn) Close(context.Context) error    { return c.Conn.Close() }

type localQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CountryForIP returns the country code whose range contains ip, or
// UnknownCountry.
func CountryForIP(ctx context.Context, q localQuerier, ip string) (string, error) {
	n, ok := ipToUint32(ip)
	if !ok {
		return UnknownCountry, nil
	}
	var country string
	err := q.QueryRowContext(ctx,
		`SELECT country FROM iptocountry WHERE ip1 <= ? AND ip2 >= ? ORDER BY ip1 DESC LIMIT 1`, n, n,
	).Scan(&country)
	if errors.Is(err, sql.ErrNoRows) {
		return UnknownCountry, nil
	}
	if err != nil {
		return "", err
	}
	return country, nil
}

func (l *LocalDB) CountryForIP(ctx context.Context, ip string) (string, error) {
	return CountryForIP(ctx, l.db, ip)
}

// ImportCountries loads ranges from CSV rows of the form
// "ip_from","ip_to",...,"cc". Three-column rows carry the code third, longer
// rows carry it fifth. It returns the number of ranges stored.
func (l *LocalDB) ImportCountries(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO iptocountry (ip1, ip2, country) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n, line := 0, 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 3 {
			log.Warn().Int("line", line).Msg("skipping short ip-to-country row")
			continue
		}
		from, err1 := strconv.ParseUint(strings.TrimSpace(rec[0]), 10, 32)
		to, err2 := strconv.ParseUint(strings.TrimSpace(rec[1]), 10, 32)
		if err1 != nil || err2 != nil {
			// header or comment line
			continue
		}
		country := rec[2]
		if len(rec) >= 5 {
			country = rec[4]
		}
		if _, err := stmt.ExecContext(ctx, from, to, strings.TrimSpace(country)); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func ipToUint32(ip string) (uint32, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return 0, false
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}
