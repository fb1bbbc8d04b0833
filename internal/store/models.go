package store

import "hostbot/internal/rating"

type Ban struct {
	Server   string `json:"server"`
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Date     string `json:"date"`
	GameName string `json:"game_name"`
	Admin    string `json:"admin"`
	Reason   string `json:"reason"`
}

type GameRecord struct {
	Server        string `json:"server"`
	Map           string `json:"map"`
	GameName      string `json:"game_name"`
	OwnerName     string `json:"owner_name"`
	Duration      int    `json:"duration"`
	GameState     int    `json:"game_state"`
	CreatorName   string `json:"creator_name"`
	CreatorServer string `json:"creator_server"`
}

type GamePlayerRecord struct {
	GameID       int64  `json:"game_id"`
	Name         string `json:"name"`
	IP           string `json:"ip"`
	Spoofed      bool   `json:"spoofed"`
	SpoofedRealm string `json:"spoofed_realm"`
	Reserved     bool   `json:"reserved"`
	LoadingTime  int    `json:"loading_time"`
	LeftSeconds  int    `json:"left_seconds"`
	LeftReason   string `json:"left_reason"`
	Team         int    `json:"team"`
	Colour       int    `json:"colour"`
}

// MatchStats is everything the stats collector reports for one match.
type MatchStats struct {
	Result  rating.GameResult   `json:"result"`
	Players []rating.PlayerLine `json:"players"`
}

type PlayerSummary struct {
	Name           string  `json:"name"`
	FirstGame      string  `json:"first_game"`
	LastGame       string  `json:"last_game"`
	TotalGames     int     `json:"total_games"`
	AvgLoadingMS   int     `json:"avg_loading_ms"`
	AvgLeftPercent float64 `json:"avg_left_percent"`
}

type TopPlayer struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}
