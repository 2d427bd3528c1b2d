package cache

import (
	"context"
	"time"
)

// ReportCache stores serialized dashboard/report payloads keyed by a digest
// of the request parameters. Payloads are opaque JSON; the caller owns the
// encoding.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}
