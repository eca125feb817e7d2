package listener

import (
	"context"
	"sync"
	"time"

	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/patrickmn/go-cache"
)

const (
	defaultHistoryTTL   = 1 * time.Hour
	defaultHistoryLimit = 20
)

// Execution is one finished run as recorded by HistoryListener.
type Execution struct {
	FireTime time.Time     `json:"fire_time"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// HistoryListener keeps the most recent executions of each matched job.
// Entries expire when a job has not run for the TTL.
type HistoryListener struct {
	name  string
	limit int
	ttl   time.Duration
	cache *cache.Cache
	mu    sync.Mutex
}

func NewHistoryListener(name string, ttl time.Duration, limit int) *HistoryListener {
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &HistoryListener{
		name:  name,
		limit: limit,
		ttl:   ttl,
		cache: cache.New(ttl, ttl*2),
	}
}

func (h *HistoryListener) Name() string {
	return h.name
}

func (h *HistoryListener) JobToBeExecuted(context.Context, types.JobExecution) {}

func (h *HistoryListener) JobWasExecuted(_ context.Context, exec types.JobExecution, duration time.Duration, err error) {
	record := Execution{
		FireTime: exec.FireTime,
		Duration: duration,
	}
	if err != nil {
		record.Error = err.Error()
	}

	cacheKey := exec.Descriptor.Key().String()

	h.mu.Lock()
	defer h.mu.Unlock()

	var history []Execution
	if cached, found := h.cache.Get(cacheKey); found {
		history = cached.([]Execution)
	}

	history = append([]Execution{record}, history...)
	if len(history) > h.limit {
		history = history[:h.limit]
	}
	h.cache.Set(cacheKey, history, h.ttl)
}

// Recent returns the recorded executions for key, newest first.
func (h *HistoryListener) Recent(key types.JobKey) []Execution {
	h.mu.Lock()
	defer h.mu.Unlock()

	cached, found := h.cache.Get(key.String())
	if !found {
		return nil
	}
	history := cached.([]Execution)
	out := make([]Execution, len(history))
	copy(out, history)
	return out
}
