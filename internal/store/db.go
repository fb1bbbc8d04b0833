package store

import (
	"context"
	"errors"
	"strings"

	"hostbot/internal/dbtask"
	"hostbot/internal/rating"
)

const (
	CategoryBanCheck      dbtask.Category = "ban-check"
	CategoryBanAdd        dbtask.Category = "ban-add"
	CategoryBanRemove     dbtask.Category = "ban-remove"
	CategoryBanCount      dbtask.Category = "ban-count"
	CategoryPlayerSummary dbtask.Category = "player-summary"
	CategoryRatingSummary dbtask.Category = "rating-summary"
	CategoryFromCheck     dbtask.Category = "from-check"
	CategoryGameAdd       dbtask.Category = "game-add"
	CategoryGamePlayerAdd dbtask.Category = "game-player-add"
	CategoryStatsAdd      dbtask.Category = "stats-add"
	CategoryRatingUpdate  dbtask.Category = "rating-update"
	CategoryTopPlayers    dbtask.Category = "top-players"
)

type DBOptions struct {
	BotID      int
	RatingBase int
	EloK       float64
}

// DB turns every backend operation into a dbtask.Task. Game loops only ever
// poll the returned Tasks and hand them back through Reclaim.
type DB struct {
	remote *dbtask.Dispatcher
	local  *dbtask.Dispatcher

	botID      int
	ratingBase int
	eloK       float64
	ratingLock *keyedMutex
}

// NewDB wires the Postgres dispatcher and, optionally, the local SQLite one.
// Without a local dispatcher every country lookup answers UnknownCountry.
func NewDB(remote, local *dbtask.Dispatcher, opts DBOptions) *DB {
	if opts.RatingBase == 0 {
		opts.RatingBase = 1000
	}
	if opts.EloK <= 0 {
		opts.EloK = rating.DefaultK
	}
	return &DB{
		remote:     remote,
		local:      local,
		botID:      opts.BotID,
		ratingBase: opts.RatingBase,
		eloK:       opts.EloK,
		ratingLock: newKeyedMutex(),
	}
}

func pg[T any](d *DB, category dbtask.Category, fn func(ctx context.Context, q Querier) (T, error)) *dbtask.Task[T] {
	return dbtask.Submit(d.remote, category, func(ctx context.Context, c dbtask.Conn) (T, error) {
		conn, err := pgConn(c)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, conn)
	})
}

func (d *DB) BanCheck(server, name, ip string) *dbtask.Task[*Ban] {
	return pg(d, CategoryBanCheck, func(ctx context.Context, q Querier) (*Ban, error) {
		return CheckBan(ctx, q, server, name, ip)
	})
}

func (d *DB) BanAdd(b Ban) *dbtask.Task[bool] {
	return pg(d, CategoryBanAdd, func(ctx context.Context, q Querier) (bool, error) {
		if err := InsertBanRecord(ctx, q, d.botID, b); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (d *DB) BanRemove(server, name string) *dbtask.Task[bool] {
	return pg(d, CategoryBanRemove, func(ctx context.Context, q Querier) (bool, error) {
		return RemoveBan(ctx, q, server, name)
	})
}

func (d *DB) BanCount(server string) *dbtask.Task[int] {
	return pg(d, CategoryBanCount, func(ctx context.Context, q Querier) (int, error) {
		return CountBans(ctx, q, server)
	})
}

func (d *DB) PlayerSummaryCheck(name string) *dbtask.Task[*PlayerSummary] {
	return pg(d, CategoryPlayerSummary, func(ctx context.Context, q Querier) (*PlayerSummary, error) {
		return GamePlayerSummary(ctx, q, name)
	})
}

// RatingSummaryCheck yields nil for a player with no rating row.
func (d *DB) RatingSummaryCheck(name, server string) *dbtask.Task[*rating.Record] {
	return pg(d, CategoryRatingSummary, func(ctx context.Context, q Querier) (*rating.Record, error) {
		rec, err := FetchRatingRecord(ctx, q, name, server)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &rec, nil
	})
}

// FromCheck resolves each address to a country code, in order.
func (d *DB) FromCheck(ips []string) *dbtask.Task[[]string] {
	ips = append([]string(nil), ips...)
	if d.local == nil {
		out := make([]string, len(ips))
		for i := range out {
			out[i] = UnknownCountry
		}
		return dbtask.Done(CategoryFromCheck, out, nil)
	}
	return dbtask.Submit(d.local, CategoryFromCheck, func(ctx context.Context, c dbtask.Conn) ([]string, error) {
		lc, ok := c.(localConn)
		if !ok {
			return nil, errUnexpectedConn
		}
		out := make([]string, len(ips))
		for i, ip := range ips {
			cc, err := CountryForIP(ctx, lc, ip)
			if err != nil {
				return nil, err
			}
			out[i] = cc
		}
		return out, nil
	})
}

// GameAdd yields the new game id.
func (d *DB) GameAdd(g GameRecord) *dbtask.Task[int64] {
	return pg(d, CategoryGameAdd, func(ctx context.Context, q Querier) (int64, error) {
		return CreateGameRecord(ctx, q, d.botID, g)
	})
}

func (d *DB) GamePlayerAdd(p GamePlayerRecord) *dbtask.Task[bool] {
	return pg(d, CategoryGamePlayerAdd, func(ctx context.Context, q Querier) (bool, error) {
		if err := CreatePlayerRecord(ctx, q, d.botID, p); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (d *DB) StatsAdd(gameID int64, stats MatchStats) *dbtask.Task[bool] {
	return pg(d, CategoryStatsAdd, func(ctx context.Context, q Querier) (bool, error) {
		if err := CreateStatsRecord(ctx, q, d.botID, gameID, stats); err != nil {
			return false, err
		}
		return true, nil
	})
}

// RatingUpdate applies one match to a player's rating row. Updates for the same
// (name, server) run one at a time within this process.
func (d *DB) RatingUpdate(u RatingUpdate) *dbtask.Task[rating.Record] {
	return pg(d, CategoryRatingUpdate, func(ctx context.Context, q Querier) (rating.Record, error) {
		unlock := d.ratingLock.Lock(strings.ToLower(u.Name) + "\x00" + u.Server)
		defer unlock()
		rec, _, err := UpdateRatingRecord(ctx, q, u, d.ratingBase, d.eloK)
		return rec, err
	})
}

func (d *DB) TopPlayers(server string, limit int) *dbtask.Task[[]TopPlayer] {
	return pg(d, CategoryTopPlayers, func(ctx context.Context, q Querier) ([]TopPlayer, error) {
		return TopPlayers(ctx, q, server, limit)
	})
}

// Reclaim hands a Task back to whichever pool leased it.
func (d *DB) Reclaim(h dbtask.Handle) bool {
	return dbtask.Release(h)
}

func (d *DB) Status() string {
	return d.remote.Pool().Status()
}

func (d *DB) Stats() dbtask.Stats {
	return d.remote.Pool().Stats()
}
