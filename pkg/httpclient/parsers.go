package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseRateLimitHeaders extracts retry hints from standard rate limit
// headers. Retry-After accepts both delta-seconds and HTTP-date forms.
func ParseRateLimitHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		} else if at, err := http.ParseTime(retryAfter); err == nil {
			if delay := time.Until(at); delay > 0 {
				info.RetryAfter = delay
			}
		}
	}

	// Reset time, either epoch seconds or RFC3339
	if resetStr := headers.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetEpoch, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			info.ResetTime = resetEpoch
		} else if resetTime, err := time.Parse(time.RFC3339, resetStr); err == nil {
			info.ResetTime = resetTime.Unix()
		}
	}

	if remaining := headers.Get("X-RateLimit-Remaining"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			info.RequestsRemaining = n
		}
	}

	return info
}
