package service

import (
	"context"
	"time"

	"mediahub-be/internal/dto"
	"mediahub-be/internal/model"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/storage"
	"mediahub-be/pkg/events"

	"github.com/goccy/go-json"
)

type IPlayRecordService interface {
	GetAll(ctx context.Context, user string) (map[string]model.PlayRecord, error)
	Save(ctx context.Context, user string, req *dto.SavePlayRecordRequest) (*model.PlayRecord, error)
	Delete(ctx context.Context, user, source, id string) error
}

type playRecordService struct {
	store            storage.IStorage
	publisherService IPublisherService
	logger           logger.ILogger
	now              func() time.Time
}

func NewPlayRecordService(store storage.IStorage, publisherService IPublisherService, log logger.ILogger) IPlayRecordService {
	return &playRecordService{
		store:            store,
		publisherService: publisherService,
		logger:           log,
		now:              time.Now,
	}
}

func (s *playRecordService) GetAll(ctx context.Context, user string) (map[string]model.PlayRecord, error) {
	return s.store.GetAllPlayRecords(ctx, user)
}

func (s *playRecordService) Save(ctx context.Context, user string, req *dto.SavePlayRecordRequest) (*model.PlayRecord, error) {
	key := storage.PlayRecordKey(req.Source, req.ID)
	record := req.Record(s.now().UnixMilli())
	if err := s.store.SetPlayRecord(ctx, user, key, record); err != nil {
		return nil, err
	}
	s.publish(ctx, user, key, false)
	return &record, nil
}

func (s *playRecordService) Delete(ctx context.Context, user, source, id string) error {
	key := storage.PlayRecordKey(source, id)
	if err := s.store.DeletePlayRecord(ctx, user, key); err != nil {
		return err
	}
	s.publish(ctx, user, key, true)
	return nil
}

// publish never fails the write; stale stats expire with the cache TTL.
func (s *playRecordService) publish(ctx context.Context, user, key string, deleted bool) {
	payload, err := json.Marshal(dto.PlayRecordedMessage{
		Type:     events.TypePlayRecorded,
		Username: user,
		Key:      key,
		Deleted:  deleted,
		At:       s.now().UnixMilli(),
	})
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn("PlayRecordService", "Failed to publish play event", map[string]interface{}{
			"user":  user,
			"key":   key,
			"error": err.Error(),
		})
	}
}
