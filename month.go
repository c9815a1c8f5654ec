package usagegate

import (
	"strconv"
	"time"
)

// monthlyTTL keeps fallback month counters alive past the calendar boundary
// to absorb clock skew and billing-period edges.
const monthlyTTL = 35 * 24 * time.Hour

// monthKey returns the UTC calendar month key, e.g. "2025-03".
func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// nextMonthStart returns the first instant of the next UTC calendar month.
func nextMonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// windowBucket returns the fixed-window bucket index for t.
func windowBucket(t time.Time, window time.Duration) int64 {
	return t.UnixMilli() / window.Milliseconds()
}

// windowEnd returns the end of the fixed window containing t.
func windowEnd(t time.Time, window time.Duration) time.Time {
	bucket := windowBucket(t, window)
	return time.UnixMilli((bucket + 1) * window.Milliseconds()).UTC()
}

// ephemeralKey builds a cache key from (feature, hashed fingerprint, bucket).
func ephemeralKey(feature Feature, hash, bucket string) string {
	return "usagegate:" + string(feature) + ":" + hash + ":" + bucket
}

// rateBucketKey builds the cache key for a fixed-window rate bucket.
func rateBucketKey(feature Feature, hash string, bucket int64) string {
	return ephemeralKey(feature, hash, strconv.FormatInt(bucket, 10))
}
