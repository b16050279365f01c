package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamSessionKey returns the cache key holding a session record
func (r *CacheKeyStruct) ExamSessionKey(sessionID string) string {
	return fmt.Sprintf("exam_session:%s", sessionID)
}

var CacheKey = NewCacheKeyStruct()
