package store

import (
	"context"
	"strings"
)

func CreateGameRecord(ctx context.Context, q Querier, botID int, g GameRecord) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO games
		(bot_id, server, map, game_name, owner_name, duration, game_state, creator_name, creator_server)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		botID, g.Server, g.Map, g.GameName, g.OwnerName, g.Duration, g.GameState, g.CreatorName, g.CreatorServer,
	).Scan(&id)
	return id, err
}

// CreatePlayerRecord is idempotent on (game_id, name) so a retried task does
// not duplicate rows.
func CreatePlayerRecord(ctx context.Context, q Querier, botID int, p GamePlayerRecord) error {
	_, err := q.Exec(ctx, `INSERT INTO game_players
		(bot_id, game_id, name, ip, spoofed, spoofed_realm, reserved, loading_time, left_seconds, left_reason, team, colour)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (game_id, name) DO NOTHING`,
		botID, p.GameID, p.Name, p.IP, p.Spoofed, p.SpoofedRealm, p.Reserved, p.LoadingTime, p.LeftSeconds, p.LeftReason, p.Team, p.Colour)
	return err
}

// CreateStatsRecord stores the match result and every player line in one
// transaction.
func CreateStatsRecord(ctx context.Context, q Querier, botID int, gameID int64, stats MatchStats) error {
	tx, err := q.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO dota_games (bot_id, game_id, winner, min, sec)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (game_id) DO NOTHING`,
		botID, gameID, stats.Result.Winner, stats.Result.Minutes, stats.Result.Seconds); err != nil {
		return err
	}
	for _, p := range stats.Players {
		if _, err := tx.Exec(ctx, `INSERT INTO dota_players
			(bot_id, game_id, colour, kills, deaths, creep_kills, creep_denies, assists, gold, neutral_kills,
			 item1, item2, item3, item4, item5, item6, hero, new_colour, tower_kills, rax_kills, courier_kills)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			ON CONFLICT (game_id, colour) DO NOTHING`,
			botID, gameID, p.Colour, p.Kills, p.Deaths, p.CreepKills, p.CreepDenies, p.Assists, p.Gold, p.NeutralKills,
			p.Items[0], p.Items[1], p.Items[2], p.Items[3], p.Items[4], p.Items[5], p.Hero, p.NewColour,
			p.TowerKills, p.RaxKills, p.CourierKills); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GamePlayerSummary aggregates a player's hosted games. A player with no games
// is (nil, nil).
func GamePlayerSummary(ctx context.Context, q Querier, name string) (*PlayerSummary, error) {
	name = strings.ToLower(name)
	var (
		s     PlayerSummary
		first *string
		last  *string
	)
	err := q.QueryRow(ctx, `SELECT
			to_char(MIN(g.created_at), 'YYYY-MM-DD'),
			to_char(MAX(g.created_at), 'YYYY-MM-DD'),
			COUNT(*),
			COALESCE(AVG(gp.loading_time), 0)::int,
			COALESCE(AVG(gp.left_seconds::float8 / NULLIF(g.duration, 0)) * 100, 0)
		FROM game_players gp
		JOIN games g ON g.id = gp.game_id
		WHERE lower(gp.name) = $1`, name,
	).Scan(&first, &last, &s.TotalGames, &s.AvgLoadingMS, &s.AvgLeftPercent)
	if err != nil {
		return nil, err
	}
	if s.TotalGames == 0 {
		return nil, nil
	}
	s.Name = name
	if first != nil {
		s.FirstGame = *first
	}
	if last != nil {
		s.LastGame = *last
	}
	return &s, nil
}
