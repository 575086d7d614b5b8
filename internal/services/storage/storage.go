package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/models"
)

// Storage holds per-session conversation state. The previous answer stored
// here feeds the router's dissatisfaction check on the next request.
type Storage interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// Manager selects and wraps a storage backend
type Manager struct {
	storage Storage
	logger  *logrus.Logger
}

// NewManager creates a storage manager for the configured backend
func NewManager(cfg *config.StorageConfig, logger *logrus.Logger) (*Manager, error) {
	var storage Storage

	switch cfg.Type {
	case "redis":
		redisStorage, err := NewRedisStorage(cfg, logger)
		if err != nil {
			return nil, err
		}
		storage = redisStorage
	case "memory":
		storage = NewMemoryStorage(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	return &Manager{storage: storage, logger: logger}, nil
}

// GetSession returns the session for id, or a fresh one when none exists.
func (m *Manager) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := m.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = &models.Session{ID: id}
	}
	return session, nil
}

// SaveSession persists the session state
func (m *Manager) SaveSession(ctx context.Context, session *models.Session) error {
	session.LastActivity = time.Now()
	return m.storage.SaveSession(ctx, session)
}

// DeleteSession removes the session state
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	return m.storage.DeleteSession(ctx, id)
}

// MemoryStorage keeps sessions in an expiring in-process cache
type MemoryStorage struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewMemoryStorage creates in-memory session storage
func NewMemoryStorage(cfg *config.StorageConfig, logger *logrus.Logger) *MemoryStorage {
	return &MemoryStorage{
		cache:  cache.New(cfg.Memory.DefaultExpiration, cfg.Memory.CleanupInterval),
		logger: logger,
	}
}

func (s *MemoryStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if val, found := s.cache.Get(sessionKey(id)); found {
		session := val.(models.Session)
		return &session, nil
	}
	return nil, nil
}

func (s *MemoryStorage) SaveSession(ctx context.Context, session *models.Session) error {
	s.cache.SetDefault(sessionKey(session.ID), *session)
	return nil
}

func (s *MemoryStorage) DeleteSession(ctx context.Context, id string) error {
	s.cache.Delete(sessionKey(id))
	return nil
}

// RedisStorage keeps sessions in Redis so multiple instances share them
type RedisStorage struct {
	client     *redis.Client
	expiration time.Duration
	logger     *logrus.Logger
}

// NewRedisStorage creates Redis-backed session storage
func NewRedisStorage(cfg *config.StorageConfig, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("addr", cfg.Redis.Addr).Info("Connected to Redis")

	return &RedisStorage{
		client:     client,
		expiration: cfg.Memory.DefaultExpiration,
		logger:     logger,
	}, nil
}

func (s *RedisStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStorage) SaveSession(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.ID), data, s.expiration).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStorage) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return "session:" + id
}
