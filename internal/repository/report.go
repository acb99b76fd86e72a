package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const failedReportsKey = "reports:failed"

// FailedReport is a result payload the platform did not accept.
type FailedReport struct {
	GameID   string          `json:"game_id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}

// ReportOutbox parks failed reports for out-of-band redelivery.
type ReportOutbox interface {
	Park(ctx context.Context, report *FailedReport) error
	List(ctx context.Context) ([]*FailedReport, error)
	Pop(ctx context.Context) (*FailedReport, error)
}

type redisOutbox struct {
	client *redis.Client
}

func NewReportOutbox(client *redis.Client) ReportOutbox {
	return &redisOutbox{
		client: client,
	}
}

func (that *redisOutbox) Park(ctx context.Context, report *FailedReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err = that.client.RPush(ctx, failedReportsKey, reportJSON).Err(); err != nil {
		return fmt.Errorf("failed to park report: %w", err)
	}

	return nil
}

func (that *redisOutbox) List(ctx context.Context) ([]*FailedReport, error) {
	response, err := that.client.LRange(ctx, failedReportsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]*FailedReport, 0, len(response))
	for _, item := range response {
		var report FailedReport
		if err = json.Unmarshal([]byte(item), &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}

		reports = append(reports, &report)
	}

	return reports, nil
}

// Pop removes the oldest parked report. It returns nil when the outbox is empty.
func (that *redisOutbox) Pop(ctx context.Context) (*FailedReport, error) {
	response, err := that.client.LPop(ctx, failedReportsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to pop report: %w", err)
	}

	var report FailedReport
	if err = json.Unmarshal([]byte(response), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

type nopOutbox struct{}

// NewNopReportOutbox is used when redis is disabled; parked reports are dropped.
func NewNopReportOutbox() ReportOutbox {
	return nopOutbox{}
}

func (nopOutbox) Park(context.Context, *FailedReport) error { return nil }

func (nopOutbox) List(context.Context) ([]*FailedReport, error) { return nil, nil }

func (nopOutbox) Pop(context.Context) (*FailedReport, error) { return nil, nil }
