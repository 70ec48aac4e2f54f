package model

// PlayRecord is keyed by "{source}+{id}" under its owner.
type PlayRecord struct {
	Title         string `json:"title"`
	SourceName    string `json:"source_name"`
	Cover         string `json:"cover"`
	Year          string `json:"year"`
	Index         int    `json:"index"`          // current episode, 1-based
	TotalEpisodes int    `json:"total_episodes"` // total episode count
	PlayTime      int64  `json:"play_time"`      // seconds watched
	TotalTime     int64  `json:"total_time"`     // seconds total
	SaveTime      int64  `json:"save_time"`      // unix millis
	SearchTitle   string `json:"search_title,omitempty"`
}

type Favorite struct {
	Title         string `json:"title"`
	SourceName    string `json:"source_name"`
	Cover         string `json:"cover"`
	Year          string `json:"year"`
	TotalEpisodes int    `json:"total_episodes"`
	SaveTime      int64  `json:"save_time"`
	SearchTitle   string `json:"search_title,omitempty"`
}

// SkipConfig holds per-title intro/outro skip points, in seconds.
type SkipConfig struct {
	Enable    bool  `json:"enable"`
	IntroTime int64 `json:"intro_time"`
	OutroTime int64 `json:"outro_time"`
}
