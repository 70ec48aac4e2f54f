package dto

import "mediahub-be/internal/model"

type SavePlayRecordRequest struct {
	Source        string `json:"source" validate:"required"`
	ID            string `json:"id" validate:"required"`
	Title         string `json:"title" validate:"required"`
	Cover         string `json:"cover"`
	Year          string `json:"year"`
	Index         int    `json:"index" validate:"min=0"`
	TotalEpisodes int    `json:"total_episodes" validate:"min=0"`
	PlayTime      int64  `json:"play_time" validate:"min=0"`
	TotalTime     int64  `json:"total_time" validate:"min=0"`
	SearchTitle   string `json:"search_title"`
}

func (r SavePlayRecordRequest) Record(saveTime int64) model.PlayRecord {
	return model.PlayRecord{
		Title:         r.Title,
		SourceName:    r.Source,
		Cover:         r.Cover,
		Year:          r.Year,
		Index:         r.Index,
		TotalEpisodes: r.TotalEpisodes,
		PlayTime:      r.PlayTime,
		TotalTime:     r.TotalTime,
		SaveTime:      saveTime,
		SearchTitle:   r.SearchTitle,
	}
}

// PlayRecordedMessage is the payload published on the play-record topic.
type PlayRecordedMessage struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Key      string `json:"key"`
	Deleted  bool   `json:"deleted,omitempty"`
	At       int64  `json:"at"`
}
