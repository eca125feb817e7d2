package types

import "fmt"

// JobNameKey is the reserved data key that carries the job's own name.
const JobNameKey = "jobName"

// JobKey identifies a job within a scheduler by name and group.
type JobKey struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

func NewJobKey(name, group string) JobKey {
	return JobKey{Name: name, Group: group}
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s.%s", k.Group, k.Name)
}

// ExecutionMode selects the job behaviour variant attached to a descriptor.
type ExecutionMode int

const (
	// Concurrent jobs are re-entrant: overlapping executions are allowed.
	Concurrent ExecutionMode = iota
	// NonConcurrent jobs are stateful: executions of the same key are serialized.
	NonConcurrent
)

func (m ExecutionMode) String() string {
	switch m {
	case Concurrent:
		return "concurrent"
	case NonConcurrent:
		return "non-concurrent"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeFor maps the concurrent configuration flag to an execution mode.
func ModeFor(concurrent bool) ExecutionMode {
	if concurrent {
		return Concurrent
	}
	return NonConcurrent
}

// JobDescriptor is an immutable description of a schedulable job.
type JobDescriptor struct {
	key              JobKey
	mode             ExecutionMode
	durable          bool
	requestsRecovery bool
	data             map[string]string
}

// NewJobDescriptor copies data so later changes to the caller's map are not
// visible through the descriptor.
func NewJobDescriptor(key JobKey, mode ExecutionMode, durable, requestsRecovery bool, data map[string]string) *JobDescriptor {
	copied := make(map[string]string, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return &JobDescriptor{
		key:              key,
		mode:             mode,
		durable:          durable,
		requestsRecovery: requestsRecovery,
		data:             copied,
	}
}

func (d *JobDescriptor) Key() JobKey {
	return d.key
}

func (d *JobDescriptor) Mode() ExecutionMode {
	return d.mode
}

// Reentrant reports whether the scheduler may overlap executions of this job.
func (d *JobDescriptor) Reentrant() bool {
	return d.mode == Concurrent
}

// Stateful reports whether the scheduler must serialize executions of this job.
func (d *JobDescriptor) Stateful() bool {
	return d.mode == NonConcurrent
}

func (d *JobDescriptor) Durable() bool {
	return d.durable
}

func (d *JobDescriptor) RequestsRecovery() bool {
	return d.requestsRecovery
}

// Data returns a copy of the descriptor's data bag.
func (d *JobDescriptor) Data() map[string]string {
	copied := make(map[string]string, len(d.data))
	for k, v := range d.data {
		copied[k] = v
	}
	return copied
}

// Value returns a single entry of the data bag.
func (d *JobDescriptor) Value(key string) (string, bool) {
	v, ok := d.data[key]
	return v, ok
}

// JobDetailConfig is the configuration surface for building one descriptor.
type JobDetailConfig struct {
	Name             string   `json:"name" yaml:"name"`
	Group            string   `json:"group" yaml:"group"`
	Concurrent       bool     `json:"concurrent" yaml:"concurrent"`
	Durable          bool     `json:"durable" yaml:"durable"`
	RequestsRecovery bool     `json:"requests_recovery" yaml:"requests_recovery"`
	ListenerNames    []string `json:"listener_names,omitempty" yaml:"listener_names,omitempty"`
}

// Job represents a scheduled job configuration
type Job struct {
	JobDetailConfig `yaml:",inline"`
	Schedule        string `json:"schedule" yaml:"schedule"`
	TaskName        string `json:"task" yaml:"task"`
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Description     string `json:"description" yaml:"description"`
}

// JobConfig represents the job scheduler configuration
type JobConfig struct {
	MaxConcurrent int   `json:"max_concurrent" yaml:"max_concurrent"`
	Predefined    []Job `json:"predefined" yaml:"predefined"`
}

// ListenerBinding records one listener name attached to one job key.
type ListenerBinding struct {
	ListenerName string `json:"listener_name"`
	Target       JobKey `json:"target"`
}
