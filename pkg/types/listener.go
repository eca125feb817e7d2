package types

import (
	"context"
	"time"
)

// Matcher decides whether a listener receives events for a job key.
type Matcher func(key JobKey) bool

// KeyEquals matches exactly one job key.
func KeyEquals(key JobKey) Matcher {
	return func(k JobKey) bool {
		return k == key
	}
}

// GroupEquals matches every job in a group.
func GroupEquals(group string) Matcher {
	return func(k JobKey) bool {
		return k.Group == group
	}
}

// AllJobs matches every job key.
func AllJobs() Matcher {
	return func(JobKey) bool {
		return true
	}
}

// JobExecution describes a single firing of a job.
type JobExecution struct {
	Descriptor *JobDescriptor
	FireTime   time.Time
	Manual     bool
}

// JobListener receives execution events for the jobs it is matched to.
type JobListener interface {
	Name() string
	JobToBeExecuted(ctx context.Context, exec JobExecution)
	JobWasExecuted(ctx context.Context, exec JobExecution, duration time.Duration, err error)
}

// ListenerManager is the scheduler capability used to attach listeners to jobs.
type ListenerManager interface {
	AddJobListenerMatcher(listenerName string, matcher Matcher) error
}

// ListenerManagerProvider hands out the scheduler's listener manager. Retrieval
// can fail when the scheduler is unavailable.
type ListenerManagerProvider interface {
	ListenerManager() (ListenerManager, error)
}
