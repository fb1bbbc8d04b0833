package host

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hostbot/internal/store"
)

// Admins combines the configured admin lists with the admins table. Names
// compare case-insensitively; root admins apply to every realm.
type Admins struct {
	mu      sync.RWMutex
	static  map[string]bool
	roots   map[string]bool
	byRealm map[string]map[string]bool
}

func NewAdmins(admins, roots []string) *Admins {
	return &Admins{
		static:  nameSet(admins),
		roots:   nameSet(roots),
		byRealm: map[string]map[string]bool{},
	}
}

func nameSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out[n] = true
		}
	}
	return out
}

func (a *Admins) IsAdmin(realm, name string) bool {
	name = strings.ToLower(name)
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.static[name] || a.byRealm[realm][name]
}

func (a *Admins) IsRootAdmin(_, name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.roots[strings.ToLower(name)]
}

// Load replaces the database admins of realm.
func (a *Admins) Load(ctx context.Context, q store.Querier, realm string) error {
	names, err := store.ListAdmins(ctx, q, realm)
	if err != nil {
		return err
	}
	set := nameSet(names)
	a.mu.Lock()
	a.byRealm[realm] = set
	a.mu.Unlock()
	log.Info().Str("realm", realm).Int("admins", len(set)).Msg("loaded admins")
	return nil
}

// StartRefresh reloads realm's admins every interval until ctx ends.
func (a *Admins) StartRefresh(ctx context.Context, q store.Querier, realm string, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.Load(ctx, q, realm); err != nil {
					log.Warn().Err(err).Str("realm", realm).Msg("admin refresh failed")
				}
			}
		}
	}()
}
