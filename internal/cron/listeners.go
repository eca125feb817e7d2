package cron

import (
	"fmt"
	"sort"

	"github.com/0xPuncker/jobwire/pkg/types"
)

// ListenerManager returns the scheduler itself once it is confirmed usable.
func (s *Scheduler) ListenerManager() (types.ListenerManager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shutdown {
		return nil, ErrSchedulerShutdown
	}
	return s, nil
}

// AddJobListener registers a named listener. Without matchers it receives no
// events until AddJobListenerMatcher attaches it to jobs.
func (s *Scheduler) AddJobListener(listener types.JobListener, matchers ...types.Matcher) error {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	name := listener.Name()
	if _, exists := s.listeners[name]; exists {
		return fmt.Errorf("%w: %s", ErrListenerRegistered, name)
	}

	s.listeners[name] = &listenerEntry{
		listener: listener,
		matchers: append([]types.Matcher(nil), matchers...),
	}
	s.logger.WithField("listener", name).Debug("Job listener registered")
	return nil
}

func (s *Scheduler) AddJobListenerMatcher(listenerName string, matcher types.Matcher) error {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	entry, exists := s.listeners[listenerName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrListenerNotFound, listenerName)
	}
	entry.matchers = append(entry.matchers, matcher)
	return nil
}

func (s *Scheduler) RemoveJobListener(listenerName string) error {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	if _, exists := s.listeners[listenerName]; !exists {
		return fmt.Errorf("%w: %s", ErrListenerNotFound, listenerName)
	}
	delete(s.listeners, listenerName)
	return nil
}

// ListenerNames returns the registered listener names in sorted order.
func (s *Scheduler) ListenerNames() []string {
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	names := make([]string, 0, len(s.listeners))
	for name := range s.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// matchingListeners returns the listeners with at least one matcher accepting key,
// ordered by name.
func (s *Scheduler) matchingListeners(key types.JobKey) []types.JobListener {
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	var matched []types.JobListener
	for _, entry := range s.listeners {
		for _, m := range entry.matchers {
			if m(key) {
				matched = append(matched, entry.listener)
				break
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Name() < matched[j].Name()
	})
	return matched
}
