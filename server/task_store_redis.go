package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agentmesh/a2a-go/server/config"
	"github.com/agentmesh/a2a-go/types"
)

const taskKeyPrefix = "a2a:task:"

// RedisTaskStore implements TaskStore on Redis, storing each task as a JSON
// blob. Read-modify-write sequences are serialized through a store-level
// mutex; with a single runtime instance that is sufficient, multi-instance
// deployments need a store with optimistic locking instead.
type RedisTaskStore struct {
	mu     sync.Mutex
	client *redis.Client
	logger *zap.Logger
}

var _ TaskStore = (*RedisTaskStore)(nil)

// NewRedisTaskStore connects to Redis and verifies the connection
func NewRedisTaskStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*RedisTaskStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required for the redis storage provider")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	if dbStr, exists := cfg.Options["db"]; exists {
		if db, err := strconv.Atoi(dbStr); err == nil {
			opt.DB = db
		}
	}

	if maxRetriesStr, exists := cfg.Options["max_retries"]; exists {
		if maxRetries, err := strconv.Atoi(maxRetriesStr); err == nil {
			opt.MaxRetries = maxRetries
		}
	}

	if timeoutStr, exists := cfg.Options["timeout"]; exists {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			opt.DialTimeout = timeout
			opt.ReadTimeout = timeout
			opt.WriteTimeout = timeout
		}
	}

	if username, exists := cfg.Credentials["username"]; exists {
		opt.Username = username
	}
	if password, exists := cfg.Credentials["password"]; exists {
		opt.Password = password
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", opt.Addr),
		zap.Int("db", opt.DB))

	return &RedisTaskStore{
		client: client,
		logger: logger,
	}, nil
}

// Close releases the underlying Redis connection
func (s *RedisTaskStore) Close() error {
	return s.client.Close()
}

// Upsert creates the task when the id is new, otherwise appends the incoming
// message to its history
func (s *RedisTaskStore) Upsert(ctx context.Context, params types.TaskSendParams) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.load(ctx, params.ID)
	if err != nil && !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	if task == nil {
		task = &types.Task{
			ID:        params.ID,
			SessionID: params.SessionID,
			Status:    types.NewTaskStatus(types.TaskStateSubmitted, nil),
			History:   []types.Message{params.Message},
			Metadata:  params.Metadata,
		}
		s.logger.Debug("task created", zap.String("task_id", params.ID))
	} else {
		task.History = append(task.History, params.Message)
	}

	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get returns the stored task
func (s *RedisTaskStore) Get(ctx context.Context, taskID string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx, taskID)
}

// Update replaces the task status, appending the status message to the
// history and the artifacts to the artifact list
func (s *RedisTaskStore) Update(ctx context.Context, taskID string, status types.TaskStatus, artifacts []types.Artifact) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}

	applyTaskUpdate(task, status, artifacts)

	if err := s.save(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Debug("task updated", zap.String("task_id", taskID),
		zap.String("state", status.State.String()))
	return task, nil
}

func (s *RedisTaskStore) load(ctx context.Context, taskID string) (*types.Task, error) {
	data, err := s.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", taskID, err)
	}

	var task types.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to deserialize task %s: %w", taskID, err)
	}
	return &task, nil
}

func (s *RedisTaskStore) save(ctx context.Context, task *types.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task %s: %w", task.ID, err)
	}
	if err := s.client.Set(ctx, taskKeyPrefix+task.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write task %s: %w", task.ID, err)
	}
	return nil
}
