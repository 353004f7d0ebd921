package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"otp-service/internal/config"
)

// BucketingManager assigns stable partition buckets for audit rows. The
// audit table is partitioned by (target_bucket, time_bucket) so no single
// partition grows unbounded.
type BucketingManager struct {
	targetBuckets int
	timeWindow    time.Duration
	hasherPool    sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		targetBuckets: cfg.Bucketing.TargetBuckets,
		timeWindow:    cfg.Bucketing.TimeBucketWindow,
	}

	// Pool of hash functions to avoid allocation overhead on the hot path
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// TargetBucket returns a consistent bucket for a target hash
// (0 to targetBuckets-1).
func (bm *BucketingManager) TargetBucket(targetHash string) int {
	return int(bm.getHash(targetHash) % uint64(bm.targetBuckets))
}

// TimeBucket returns the fixed-window bucket containing t, as unix seconds
// aligned to the window start.
func (bm *BucketingManager) TimeBucket(t time.Time) int64 {
	window := int64(bm.timeWindow / time.Second)
	return t.Unix() / window * window
}

// DateBucket returns the UTC calendar date for daily rollups.
func (bm *BucketingManager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (bm *BucketingManager) TargetBuckets() int {
	return bm.targetBuckets
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
