package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CheckBan returns the ban matching name on server, or ip on any server when
// ip is set. No ban is (nil, nil).
func CheckBan(ctx context.Context, q Querier, server, name, ip string) (*Ban, error) {
	name = strings.ToLower(name)
	sql := `SELECT server, name, ip, to_char(date, 'YYYY-MM-DD'), game_name, admin, reason
		FROM bans WHERE server = $1 AND name = $2
		ORDER BY id DESC LIMIT 1`
	args := []any{server, name}
	if ip != "" {
		sql = `SELECT server, name, ip, to_char(date, 'YYYY-MM-DD'), game_name, admin, reason
			FROM bans WHERE (server = $1 AND name = $2) OR ip = $3
			ORDER BY id DESC LIMIT 1`
		args = append(args, ip)
	}
	var b Ban
	err := q.QueryRow(ctx, sql, args...).Scan(&b.Server, &b.Name, &b.IP, &b.Date, &b.GameName, &b.Admin, &b.Reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func InsertBanRecord(ctx context.Context, q Querier, botID int, b Ban) error {
	_, err := q.Exec(ctx, `INSERT INTO bans (bot_id, server, name, ip, date, game_name, admin, reason)
		VALUES ($1, $2, $3, $4, CURRENT_DATE, $5, $6, $7)`,
		botID, b.Server, strings.ToLower(b.Name), b.IP, b.GameName, b.Admin, b.Reason)
	return err
}

// RemoveBan deletes every ban for name on server and reports whether any existed.
func RemoveBan(ctx context.Context, q Querier, server, name string) (bool, error) {
	tag, err := q.Exec(ctx, `DELETE FROM bans WHERE server = $1 AND name = $2`, server, strings.ToLower(name))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func CountBans(ctx context.Context, q Querier, server string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM bans WHERE server = $1`, server).Scan(&n)
	return n, err
}
