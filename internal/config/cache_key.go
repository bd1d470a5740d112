package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ProgressKey returns the key of a device's in-flight snapshot for a test
func (r *CacheKeyStruct) ProgressKey(deviceID, code string) string {
	return fmt.Sprintf("progress::%s::%s", deviceID, code)
}

// BlockListKey returns the key of the device-local block list (a Redis hash
// of "code::device" to the JSON block entry)
func (r *CacheKeyStruct) BlockListKey() string {
	return "blocked"
}

// BlockField returns the hash field of one block entry
func (r *CacheKeyStruct) BlockField(code, deviceID string) string {
	return fmt.Sprintf("%s::%s", code, deviceID)
}

// LastAttemptKey returns the cooldown marker of a device for a test
func (r *CacheKeyStruct) LastAttemptKey(code, deviceID string) string {
	return fmt.Sprintf("lastAttempt::%s::%s", code, deviceID)
}

// CheatLogKey returns the list holding a session's cheat events
func (r *CacheKeyStruct) CheatLogKey(attemptKey string) string {
	return fmt.Sprintf("cheatLogs::%s", attemptKey)
}

// ResultKey returns the key of a stored result record
func (r *CacheKeyStruct) ResultKey(resultCode string) string {
	return fmt.Sprintf("result::%s", resultCode)
}

var CacheKey = NewCacheKeyStruct()
