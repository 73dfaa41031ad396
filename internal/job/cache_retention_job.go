package job

import (
	"context"
	"time"

	"github.com/xxxsen/ragcache/internal/store"
)

// CacheRetentionJob drops response cache entries older than the retention window.
type CacheRetentionJob struct {
	expirer       store.Expirer
	retentionDays int
	now           func() time.Time
}

func NewCacheRetentionJob(expirer store.Expirer, retentionDays int) *CacheRetentionJob {
	return &CacheRetentionJob{expirer: expirer, retentionDays: retentionDays, now: time.Now}
}

func (j *CacheRetentionJob) Name() string {
	return "response_cache_retention"
}

func (j *CacheRetentionJob) Run(ctx context.Context) (int64, error) {
	if j.expirer == nil || j.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-time.Duration(j.retentionDays) * 24 * time.Hour).Unix()
	return j.expirer.DeleteBefore(ctx, cutoff)
}
