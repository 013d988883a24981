package service

import "sync"

// courseLocks serializes schedule and enrollment mutations per course.
// Different courses proceed in parallel; two operations on the same course
// never interleave their read-validate-write cycles.
type courseLocks struct {
	mu    sync.Mutex
	locks map[string]*courseLock
}

type courseLock struct {
	mu   sync.Mutex
	refs int
}

func newCourseLocks() *courseLocks {
	return &courseLocks{locks: make(map[string]*courseLock)}
}

// Lock acquires the mutex for a course and returns its release function.
func (c *courseLocks) Lock(courseID string) func() {
	c.mu.Lock()
	lock, ok := c.locks[courseID]
	if !ok {
		lock = &courseLock{}
		c.locks[courseID] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()
		c.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, courseID)
		}
		c.mu.Unlock()
	}
}
