package cache

import "fmt"

// RateLimitKey builds the counter key for one credential prefix. The prefix is
// non-secret, so it is safe to appear in Redis.
func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
