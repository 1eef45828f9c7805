package public

import "labyrinth-server/internal/game/viewmodel"

type SessionsResponse struct {
	Items []viewmodel.SessionView `json:"items"`
}

type PlayersResponse struct {
	SessionID string               `json:"session_id"`
	Items     []viewmodel.SlotView `json:"items"`
}

type LeaderboardResponse struct {
	Items  []LeaderboardItem `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type LeaderboardItem struct {
	Rank      int     `json:"rank"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	GamesWon  int     `json:"games_won"`
	GamesLost int     `json:"games_lost"`
	WinRate   float64 `json:"win_rate"`
}
