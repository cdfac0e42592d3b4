package scraper

import "time"

// Back-off constants for failed entries.
const (
	RetryDelay        = 5 * time.Minute
	BlockedBaseDelay  = 30 * time.Second
	maxBlockedBackoff = 24 * time.Hour
)

// RetryPlan is what a failed attempt turns into.
type RetryPlan struct {
	Retry         bool
	NextAttemptAt time.Time
}

// PlanRetry decides whether a failed attempt re-pends. The entry re-pends while
// retryCount < maxRetries; ssl and ocr failures only get one retry.
func PlanRetry(err error, retryCount, maxRetries int, now time.Time) RetryPlan {
	if !IsRetryable(err) || retryCount >= maxRetries {
		return RetryPlan{}
	}
	switch KindOf(err) {
	case KindSSL, KindOCRFailed:
		if retryCount > 0 {
			return RetryPlan{}
		}
	case KindBlocked:
		return RetryPlan{Retry: true, NextAttemptAt: now.Add(blockedBackoff(retryCount))}
	}
	return RetryPlan{Retry: true, NextAttemptAt: now.Add(RetryDelay)}
}

func blockedBackoff(retryCount int) time.Duration {
	delay := BlockedBaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxBlockedBackoff {
			return maxBlockedBackoff
		}
	}
	return delay
}
