package redis

import "github.com/redis/rueidis"

// NewLockerForTest creates a Locker with the provided rueidis client and a
// fixed token (test-only).
func NewLockerForTest(c rueidis.Client, token string) *Locker {
	l := newLocker(c)
	l.token = func() string { return token }
	return l
}
