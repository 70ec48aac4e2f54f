// Package stats computes play statistics by scanning every user's play records.
// There is no secondary index, so results are cached for a fixed window and
// invalidated whenever a play is recorded.
package stats

import (
	"context"
	"sort"
	"time"

	"mediahub-be/internal/model"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/storage"

	"github.com/goccy/go-json"
	"go.uber.org/multierr"
)

const (
	SummaryCacheKey    = "play_stats_summary"
	userCacheKeyPrefix = "user_play_stat:"

	DefaultCacheTTL  = 30 * time.Minute
	topSourcesLimit  = 5
	dailyStatsDays   = 7
	recentRecordsMax = 10
)

func UserCacheKey(user string) string {
	return userCacheKeyPrefix + user
}

type Aggregator struct {
	store  storage.IStorage
	ttl    time.Duration
	logger logger.ILogger
	now    func() time.Time
}

func NewAggregator(store storage.IStorage, ttl time.Duration, log logger.ILogger) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Aggregator{store: store, ttl: ttl, logger: log, now: time.Now}
}

// GetPlayStats returns the sitewide summary, from cache when fresh.
func (a *Aggregator) GetPlayStats(ctx context.Context) (*model.PlayStatsResult, error) {
	var cached model.PlayStatsResult
	if a.readCache(ctx, SummaryCacheKey, &cached) {
		return &cached, nil
	}

	result, err := a.computePlayStats(ctx)
	if err != nil {
		return nil, err
	}
	a.writeCache(ctx, SummaryCacheKey, result)
	return result, nil
}

func (a *Aggregator) GetUserPlayStat(ctx context.Context, user string) (*model.UserPlayStat, error) {
	var cached model.UserPlayStat
	if a.readCache(ctx, UserCacheKey(user), &cached) {
		return &cached, nil
	}

	stat, _, err := a.computeUserStat(ctx, user)
	if err != nil {
		return nil, err
	}
	a.writeCache(ctx, UserCacheKey(user), stat)
	return stat, nil
}

// Invalidate drops the summary and, when user is set, that user's entry.
func (a *Aggregator) Invalidate(ctx context.Context, user string) error {
	err := a.store.DeleteCache(ctx, SummaryCacheKey)
	if user != "" {
		err = multierr.Append(err, a.store.DeleteCache(ctx, UserCacheKey(user)))
	}
	return err
}

func (a *Aggregator) readCache(ctx context.Context, key string, dst interface{}) bool {
	raw, ok, err := a.store.GetCache(ctx, key)
	if err != nil {
		a.logger.Warn("Stats", "Cache read failed, recomputing", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		a.logger.Warn("Stats", "Discarding corrupt cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return true
}

func (a *Aggregator) writeCache(ctx context.Context, key string, v interface{}) {
	if err := a.store.SetCache(ctx, key, v, a.ttl); err != nil {
		a.logger.Warn("Stats", "Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (a *Aggregator) computeUserStat(ctx context.Context, user string) (*model.UserPlayStat, []model.PlayRecord, error) {
	byKey, err := a.store.GetAllPlayRecords(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	login, err := a.store.GetUserLoginStats(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	records := make([]model.PlayRecord, 0, len(byKey))
	for _, r := range byKey {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SaveTime > records[j].SaveTime })

	stat := &model.UserPlayStat{
		Username:       user,
		TotalPlays:     len(records),
		RecentRecords:  records[:min(len(records), recentRecordsMax)],
		LoginCount:     login.LoginCount,
		FirstLoginTime: login.FirstLoginTime,
		LastLoginTime:  login.LastLoginTime,
	}

	sources := make(map[string]int)
	for _, r := range records {
		stat.TotalWatchTime += r.PlayTime
		sources[r.SourceName]++
		if r.SaveTime > stat.LastPlayTime {
			stat.LastPlayTime = r.SaveTime
		}
		if stat.FirstWatchDate == 0 || r.SaveTime < stat.FirstWatchDate {
			stat.FirstWatchDate = r.SaveTime
		}
	}
	if stat.TotalPlays > 0 {
		stat.AvgWatchTime = float64(stat.TotalWatchTime) / float64(stat.TotalPlays)
	}
	if top := rankSources(sources); len(top) > 0 {
		stat.MostWatchedSource = top[0].Source
	}
	return stat, records, nil
}

func (a *Aggregator) computePlayStats(ctx context.Context) (*model.PlayStatsResult, error) {
	users, err := a.store.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	today := truncateDay(now)
	daily := make(map[string]*model.DailyStat, dailyStatsDays)
	dailyStats := make([]model.DailyStat, dailyStatsDays)
	for i := 0; i < dailyStatsDays; i++ {
		day := today.AddDate(0, 0, i-(dailyStatsDays-1)).Format("2006-01-02")
		dailyStats[i] = model.DailyStat{Date: day}
		daily[day] = &dailyStats[i]
	}

	result := &model.PlayStatsResult{
		TotalUsers:  len(users),
		UserStats:   make([]model.UserPlayStat, 0, len(users)),
		GeneratedAt: now.UnixMilli(),
	}
	sources := make(map[string]int)

	for _, user := range users {
		stat, records, err := a.computeUserStat(ctx, user)
		if err != nil {
			return nil, err
		}
		result.UserStats = append(result.UserStats, *stat)
		result.TotalWatchTime += stat.TotalWatchTime
		result.TotalPlays += stat.TotalPlays

		for _, r := range records {
			sources[r.SourceName]++
			if d, ok := daily[time.UnixMilli(r.SaveTime).In(now.Location()).Format("2006-01-02")]; ok {
				d.WatchTime += r.PlayTime
				d.Plays++
			}
		}

		last := max(stat.LastPlayTime, stat.LastLoginTime)
		if last == 0 {
			continue
		}
		age := now.Sub(time.UnixMilli(last))
		if age <= 24*time.Hour {
			result.ActiveUsers.Daily++
		}
		if age <= 7*24*time.Hour {
			result.ActiveUsers.Weekly++
		}
		if age <= 30*24*time.Hour {
			result.ActiveUsers.Monthly++
		}
	}

	if result.TotalUsers > 0 {
		result.AvgWatchTimePerUser = float64(result.TotalWatchTime) / float64(result.TotalUsers)
		result.AvgPlaysPerUser = float64(result.TotalPlays) / float64(result.TotalUsers)
	}
	top := rankSources(sources)
	result.TopSources = top[:min(len(top), topSourcesLimit)]
	result.DailyStats = dailyStats

	sort.SliceStable(result.UserStats, func(i, j int) bool {
		return result.UserStats[i].TotalWatchTime > result.UserStats[j].TotalWatchTime
	})
	return result, nil
}

func rankSources(counts map[string]int) []model.SourceStat {
	out := make([]model.SourceStat, 0, len(counts))
	for source, n := range counts {
		out = append(out, model.SourceStat{Source: source, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
