package store

import (
	"context"
	"strings"
)

func ListAdmins(ctx context.Context, q Querier, server string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT name FROM admins WHERE server = $1 ORDER BY name`, server)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func AddAdmin(ctx context.Context, q Querier, botID int, server, name string) error {
	_, err := q.Exec(ctx, `INSERT INTO admins (bot_id, server, name) VALUES ($1, $2, $3)
		ON CONFLICT (server, name) DO NOTHING`, botID, server, strings.ToLower(name))
	return err
}
