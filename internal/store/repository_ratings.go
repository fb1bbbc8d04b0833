package store

import (
	"context"
	"strings"

	"hostbot/internal/rating"
)

const ratingColumns = `id, name, server, games, wins, losses, kills, deaths, assists,
	creep_kills, creep_denies, neutral_kills, tower_kills, rax_kills, courier_kills,
	rating, rating_peak, leaves, played_minutes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRating(row rowScanner) (rating.Record, error) {
	var r rating.Record
	err := row.Scan(&r.ID, &r.Name, &r.Server, &r.Games, &r.Wins, &r.Losses, &r.Kills, &r.Deaths, &r.Assists,
		&r.CreepKills, &r.CreepDenies, &r.NeutralKills, &r.TowerKills, &r.RaxKills, &r.CourierKills,
		&r.Rating, &r.RatingPeak, &r.Leaves, &r.PlayedMinutes)
	return r, err
}

func FetchRatingRecord(ctx context.Context, q Querier, name, server string) (rating.Record, error) {
	row := q.QueryRow(ctx, `SELECT `+ratingColumns+` FROM player_ratings WHERE name = $1 AND server = $2`,
		strings.ToLower(name), server)
	r, err := scanRating(row)
	if err != nil {
		return rating.Record{}, mapNotFound(err)
	}
	return r, nil
}

// UpsertRatingRecord writes every counter of r and returns the row id.
func UpsertRatingRecord(ctx context.Context, q Querier, r rating.Record) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO player_ratings
		(name, server, games, wins, losses, kills, deaths, assists, creep_kills, creep_denies,
		 neutral_kills, tower_kills, rax_kills, courier_kills, rating, rating_peak, leaves, played_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (name, server) DO UPDATE SET
			games = EXCLUDED.games, wins = EXCLUDED.wins, losses = EXCLUDED.losses,
			kills = EXCLUDED.kills, deaths = EXCLUDED.deaths, assists = EXCLUDED.assists,
			creep_kills = EXCLUDED.creep_kills, creep_denies = EXCLUDED.creep_denies,
			neutral_kills = EXCLUDED.neutral_kills, tower_kills = EXCLUDED.tower_kills,
			rax_kills = EXCLUDED.rax_kills, courier_kills = EXCLUDED.courier_kills,
			rating = EXCLUDED.rating, rating_peak = EXCLUDED.rating_peak,
			leaves = EXCLUDED.leaves, played_minutes = EXCLUDED.played_minutes
		RETURNING id`,
		strings.ToLower(r.Name), r.Server, r.Games, r.Wins, r.Losses, r.Kills, r.Deaths, r.Assists,
		r.CreepKills, r.CreepDenies, r.NeutralKills, r.TowerKills, r.RaxKills, r.CourierKills,
		r.Rating, r.RatingPeak, r.Leaves, r.PlayedMinutes,
	).Scan(&id)
	return id, err
}

// RatingUpdate is one player's share of a finished ladder match.
type RatingUpdate struct {
	Name        string            `json:"name"`
	Server      string            `json:"server"`
	Line        rating.PlayerLine `json:"line"`
	Game        rating.GameResult `json:"game"`
	OpponentAvg int               `json:"opponent_avg"`
	Left        bool              `json:"left"`
}

// UpdateRatingRecord reads, applies and writes one rating row under a row lock.
// A missing row starts at base. It reports whether the row changed.
func UpdateRatingRecord(ctx context.Context, q Querier, u RatingUpdate, base int, k float64) (rating.Record, bool, error) {
	name := strings.ToLower(u.Name)
	tx, err := q.Begin(ctx)
	if err != nil {
		return rating.Record{}, false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO player_ratings (name, server, rating, rating_peak)
		VALUES ($1, $2, $3, $3) ON CONFLICT (name, server) DO NOTHING`, name, u.Server, base); err != nil {
		return rating.Record{}, false, err
	}
	current, err := scanRating(tx.QueryRow(ctx,
		`SELECT `+ratingColumns+` FROM player_ratings WHERE name = $1 AND server = $2 FOR UPDATE`, name, u.Server))
	if err != nil {
		return rating.Record{}, false, mapNotFound(err)
	}

	next, changed := rating.Apply(current, u.Line, u.Game, u.OpponentAvg, k)
	if u.Left {
		next.Leaves++
		changed = true
	}
	if !changed {
		return current, false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE player_ratings SET
			games = $2, wins = $3, losses = $4, kills = $5, deaths = $6, assists = $7,
			creep_kills = $8, creep_denies = $9, neutral_kills = $10, tower_kills = $11,
			rax_kills = $12, courier_kills = $13, rating = $14, rating_peak = $15,
			leaves = $16, played_minutes = $17
		WHERE id = $1`,
		next.ID, next.Games, next.Wins, next.Losses, next.Kills, next.Deaths, next.Assists,
		next.CreepKills, next.CreepDenies, next.NeutralKills, next.TowerKills,
		next.RaxKills, next.CourierKills, next.Rating, next.RatingPeak,
		next.Leaves, next.PlayedMinutes); err != nil {
		return rating.Record{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return rating.Record{}, false, err
	}
	return next, true, nil
}

func TopPlayers(ctx context.Context, q Querier, server string, limit int) ([]TopPlayer, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := q.Query(ctx, `SELECT name, rating FROM player_ratings
		WHERE server = $1 AND games > 0 ORDER BY rating DESC, name LIMIT $2`, server, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopPlayer
	for rows.Next() {
		var p TopPlayer
		if err := rows.Scan(&p.Name, &p.Rating); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
