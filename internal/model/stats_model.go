package model

type UserPlayStat struct {
	Username          string       `json:"username"`
	TotalWatchTime    int64        `json:"total_watch_time"`
	TotalPlays        int          `json:"total_plays"`
	LastPlayTime      int64        `json:"last_play_time"`
	AvgWatchTime      float64      `json:"avg_watch_time"`
	MostWatchedSource string       `json:"most_watched_source"`
	FirstWatchDate    int64        `json:"first_watch_date"`
	RecentRecords     []PlayRecord `json:"recent_records"`
	LoginCount        int64        `json:"login_count"`
	FirstLoginTime    int64        `json:"first_login_time"`
	LastLoginTime     int64        `json:"last_login_time"`
}

type SourceStat struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type DailyStat struct {
	Date      string `json:"date"` // YYYY-MM-DD
	WatchTime int64  `json:"watch_time"`
	Plays     int    `json:"plays"`
}

type ActiveUsers struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

type PlayStatsResult struct {
	TotalUsers          int            `json:"total_users"`
	TotalWatchTime      int64          `json:"total_watch_time"`
	TotalPlays          int            `json:"total_plays"`
	AvgWatchTimePerUser float64        `json:"avg_watch_time_per_user"`
	AvgPlaysPerUser     float64        `json:"avg_plays_per_user"`
	UserStats           []UserPlayStat `json:"user_stats"`
	TopSources          []SourceStat   `json:"top_sources"`
	DailyStats          []DailyStat    `json:"daily_stats"`
	ActiveUsers         ActiveUsers    `json:"active_users"`
	GeneratedAt         int64          `json:"generated_at"`
}
