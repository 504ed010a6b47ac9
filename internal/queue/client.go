package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/config"
	"github.com/nikhilbhutani/ragvault/internal/rag"
)

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(cfg config.RedisConfig) *Client {
	opt := RedisOpt(cfg)
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// EnqueueIngest queues ingestion of a stored upload and returns the job id.
func (c *Client) EnqueueIngest(ctx context.Context, req rag.IngestRequest) (string, error) {
	task, err := NewIngestTask(req)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeDocumentIngest, err)
	}
	return info.ID, nil
}

// JobInfo is the externally visible state of a queued ingestion.
type JobInfo struct {
	ID         string `json:"id"`
	Queue      string `json:"queue"`
	State      string `json:"state"`
	Retried    int    `json:"retried"`
	MaxRetry   int    `json:"max_retry"`
	LastErr    string `json:"last_error,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// Job looks up an ingestion job by id.
func (c *Client) Job(_ context.Context, id string) (*JobInfo, error) {
	info, err := c.inspector.GetTaskInfo(DefaultQueue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, apperr.NotFound("job %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return jobFromTask(info), nil
}

func jobFromTask(info *asynq.TaskInfo) *JobInfo {
	job := &JobInfo{
		ID:       info.ID,
		Queue:    info.Queue,
		State:    info.State.String(),
		Retried:  info.Retried,
		MaxRetry: info.MaxRetry,
		LastErr:  info.LastErr,
	}
	var p IngestPayload
	if json.Unmarshal(info.Payload, &p) == nil {
		job.DocumentID = p.DocumentID
	}
	return job
}
