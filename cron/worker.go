package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cardpresent/config"
	"cardpresent/services/tasks"
	"cardpresent/services/terminal"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RedisOpt is the asynq connection for the payments queue.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitIntentCancelWorker runs the deferred cancellation worker in background.
// The returned server must be shut down by the caller.
func InitIntentCancelWorker(backend terminal.PaymentBackend, logger *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(
		RedisOpt(),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				tasks.QueuePayments: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeCancelIntent, HandleCancelIntentTask(backend, logger))

	go func() {
		logger.Info("Starting intent cancel worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				return
			}
			logger.Error("Intent cancel worker failed to start",
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(err))
			if attempts == maxAttempts {
				logger.Fatal("Max retry attempts reached for intent cancel worker")
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return srv
}

// HandleCancelIntentTask cancels the intent named in the task. Requests the
// backend rejects outright are not retried.
func HandleCancelIntentTask(backend terminal.PaymentBackend, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p tasks.IntentCancelPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("Invalid intent cancel payload", zap.Error(err))
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}

		err := backend.CancelIntent(ctx, p.IntentID)
		switch terminal.CodeOf(err) {
		case "":
			if err != nil {
				break
			}
			logger.Info("Deferred intent cancel succeeded", zap.String("intent_id", p.IntentID))
			return nil
		case terminal.CodeInvalidRequest, terminal.CodeAuthentication:
			logger.Warn("Intent cannot be canceled, giving up", zap.String("intent_id", p.IntentID), zap.Error(err))
			return fmt.Errorf("cancel %s: %v: %w", p.IntentID, err, asynq.SkipRetry)
		}
		logger.Warn("Deferred intent cancel failed, will retry", zap.String("intent_id", p.IntentID), zap.Error(err))
		return err
	}
}
