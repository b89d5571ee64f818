// Gói scheduler đẩy yêu cầu fetch out-of-band qua Kafka. Enqueue là
// fire-and-forget: consumer tự khử trùng lặp nhờ upsert idempotent nên
// schedule lại một item đã có là no-op ở phía nhận.

package scheduler

import (
	"context"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/pkg/kafka"
	"github.com/thep200/github-syncer/pkg/log"
)

const (
	MsgKeyFetchRepo = "fetch.repo"
	MsgKeyFetchItem = "fetch.item"

	KindPullRequest = "pull_request"
	KindIssue       = "issue"
)

// Scheduler là contract mà pipeline và reconciler sử dụng
type Scheduler interface {
	ScheduleFetch(ctx context.Context, naturalKey string) error
	ScheduleTargetedFetch(ctx context.Context, naturalKey, kind string, number int) error
}

// KafkaScheduler publish yêu cầu fetch lên topic chung
type KafkaScheduler struct {
	Logger   log.Logger
	Producer *kafka.Producer
}

func NewKafkaScheduler(config *cfg.Config, logger log.Logger) (*KafkaScheduler, error) {
	producer := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicFetch)
	return &KafkaScheduler{
		Logger:   logger,
		Producer: producer,
	}, nil
}

func (s *KafkaScheduler) ScheduleFetch(ctx context.Context, naturalKey string) error {
	return s.Producer.Publish(ctx, MsgKeyFetchRepo, model.FetchRepoMessage{NaturalKey: naturalKey})
}

func (s *KafkaScheduler) ScheduleTargetedFetch(ctx context.Context, naturalKey, kind string, number int) error {
	return s.Producer.Publish(ctx, MsgKeyFetchItem, model.FetchItemMessage{
		NaturalKey: naturalKey,
		Kind:       kind,
		Number:     number,
	})
}

func (s *KafkaScheduler) Close() error {
	return s.Producer.Close()
}

// RetryPolicy là cấu hình retry cho một job, truyền tường minh thay vì
// gắn cứng vào từng job
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func RetryPolicyFromConfig(config *cfg.Config) RetryPolicy {
	attempts := config.Sync.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := time.Duration(config.Sync.RetryBackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return RetryPolicy{Attempts: attempts, Backoff: backoff}
}

// Run chạy một job với số lần thử giới hạn và backoff tuyến tính giữa các lần
func (p RetryPolicy) Run(ctx context.Context, logger log.Logger, name string, job func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err = job(ctx)
		if err == nil {
			return nil
		}
		logger.Warn(ctx, "Job %s attempt %d/%d failed: %v", name, attempt, p.Attempts, err)

		if attempt < p.Attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff * time.Duration(attempt)):
			}
		}
	}
	return err
}
