package jobdetail

import (
	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/sirupsen/logrus"
)

// Factory builds one descriptor from a complete configuration unit and binds
// its listeners. The descriptor is created exactly once.
type Factory struct {
	descriptor *types.JobDescriptor
	bindings   []types.ListenerBinding
	bindErr    error
}

func NewFactory(cfg types.JobDetailConfig, provider types.ListenerManagerProvider, logger *logrus.Logger) (*Factory, error) {
	descriptor, err := BuildFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	result := NewRegistrar(logger).Bind(descriptor, cfg.ListenerNames, provider)

	logger.WithFields(logrus.Fields{
		"job_name":          descriptor.Key().Name,
		"job_group":         descriptor.Key().Group,
		"mode":              descriptor.Mode().String(),
		"durable":           descriptor.Durable(),
		"requests_recovery": descriptor.RequestsRecovery(),
		"listeners":         len(result.Bindings),
	}).Debug("Job descriptor created")

	return &Factory{
		descriptor: descriptor,
		bindings:   result.Bindings,
		bindErr:    result.Err,
	}, nil
}

// Object returns the descriptor built at construction.
func (f *Factory) Object() *types.JobDescriptor {
	return f.descriptor
}

func (f *Factory) Bindings() []types.ListenerBinding {
	out := make([]types.ListenerBinding, len(f.bindings))
	copy(out, f.bindings)
	return out
}

// BindErr is the aggregated listener binding warning, nil if every listener was bound.
func (f *Factory) BindErr() error {
	return f.bindErr
}
