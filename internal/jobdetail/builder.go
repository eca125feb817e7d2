package jobdetail

import (
	"fmt"
	"strings"

	"github.com/0xPuncker/jobwire/pkg/types"
)

// ConfigurationError reports a required job field that was not supplied.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Build validates the job identity and returns an immutable descriptor.
// Nothing is returned when the name or group is missing.
func Build(key types.JobKey, mode types.ExecutionMode, durable, requestsRecovery bool) (*types.JobDescriptor, error) {
	if strings.TrimSpace(key.Name) == "" {
		return nil, &ConfigurationError{Field: "name"}
	}
	if strings.TrimSpace(key.Group) == "" {
		return nil, &ConfigurationError{Field: "group"}
	}

	switch mode {
	case types.Concurrent, types.NonConcurrent:
	default:
		return nil, fmt.Errorf("unknown execution mode %d for job %s", int(mode), key)
	}

	data := map[string]string{
		types.JobNameKey: key.Name,
	}

	return types.NewJobDescriptor(key, mode, durable, requestsRecovery, data), nil
}

// BuildFromConfig is Build driven by a configuration unit.
func BuildFromConfig(cfg types.JobDetailConfig) (*types.JobDescriptor, error) {
	return Build(
		types.NewJobKey(cfg.Name, cfg.Group),
		types.ModeFor(cfg.Concurrent),
		cfg.Durable,
		cfg.RequestsRecovery,
	)
}
