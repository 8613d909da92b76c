package repository

import "time"

// CacheRepository is a small key/value cache used for moderation verdicts.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
}
