package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"projecthub/backend/internal/models"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	presenceKey       = "presence:online"
	roomChannelPrefix = "room:"
)

// ErrRedisUnavailable is returned by the redis-backed methods when the
// service was built without a redis client.
var ErrRedisUnavailable = errors.New("redis is not configured")

// Storage is the persistence collaborator consumed by the chat hub.
type Storage interface {
	CreateMessage(ctx context.Context, input models.ChatMessageInput) (*models.ChatMessage, error)
	ListMessagesByRoom(ctx context.Context, projectID uint) ([]models.ChatMessage, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates the tables this service reads and writes.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.ChatMessage{})
}

// CreateMessage records an authored message and returns it with the
// database-assigned id and timestamp.
func (s *Service) CreateMessage(ctx context.Context, input models.ChatMessageInput) (*models.ChatMessage, error) {
	msg := models.ChatMessage{
		Content:   input.Content,
		AuthorID:  input.AuthorID,
		ProjectID: input.ProjectID,
	}

	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		log.Printf("[storage] failed to save message for project %d: %v", input.ProjectID, err)
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &msg, nil
}

// ListMessagesByRoom returns the project's messages oldest first, with authors.
func (s *Service) ListMessagesByRoom(ctx context.Context, projectID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Preload("Author").
		Where("project_id = ?", projectID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return messages, nil
		}
		log.Printf("[storage] failed to list messages for project %d: %v", projectID, err)
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// ListMessagesByRooms returns the messages of several projects in one query.
// It relies on PostgreSQL's ANY over an array parameter.
func (s *Service) ListMessagesByRooms(ctx context.Context, projectIDs []uint) ([]models.ChatMessage, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(projectIDs))
	for _, id := range projectIDs {
		ids = append(ids, int64(id))
	}

	var messages []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Preload("Author").
		Where("project_id = ANY(?)", pq.Array(ids)).
		Order("project_id asc, created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages for %d projects: %w", len(projectIDs), err)
	}
	return messages, nil
}

// MirrorPresence replaces the redis online set with the given snapshot.
func (s *Service) MirrorPresence(ctx context.Context, userIDs []string) error {
	if s.Redis == nil {
		return ErrRedisUnavailable
	}
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, presenceKey)
		if len(userIDs) > 0 {
			members := make([]interface{}, len(userIDs))
			for i, id := range userIDs {
				members[i] = id
			}
			pipe.SAdd(ctx, presenceKey, members...)
		}
		return nil
	})
	return err
}

// OnlineUsers reads the mirrored presence snapshot, sorted.
func (s *Service) OnlineUsers(ctx context.Context) ([]string, error) {
	if s.Redis == nil {
		return nil, ErrRedisUnavailable
	}
	users, err := s.Redis.SMembers(ctx, presenceKey).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}

// PublishRoomEvent publishes an encoded room frame for the other server nodes.
func (s *Service) PublishRoomEvent(ctx context.Context, roomID string, payload []byte) error {
	if s.Redis == nil {
		return ErrRedisUnavailable
	}
	return s.Redis.Publish(ctx, roomChannelPrefix+roomID, payload).Err()
}

// SubscribeToRooms subscribes to the frames of every room.
func (s *Service) SubscribeToRooms(ctx context.Context) *redis.PubSub {
	return s.Redis.PSubscribe(ctx, roomChannelPrefix+"*")
}
