package jobdetail

import (
	"fmt"

	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// BindResult is the outcome of a listener binding pass. Err is a warning: the
// descriptor stays valid whatever it holds.
type BindResult struct {
	Bindings []types.ListenerBinding
	Err      error
}

type Registrar struct {
	logger *logrus.Logger
}

func NewRegistrar(logger *logrus.Logger) *Registrar {
	return &Registrar{logger: logger}
}

// Bind attaches each named listener to the descriptor's key, in input order.
// Failures are logged and collected in the result, never returned.
func (r *Registrar) Bind(descriptor *types.JobDescriptor, listenerNames []string, provider types.ListenerManagerProvider) BindResult {
	var result BindResult
	if descriptor == nil || len(listenerNames) == 0 {
		return result
	}

	key := descriptor.Key()

	manager, err := r.listenerManager(provider)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"job_name":  key.Name,
			"job_group": key.Group,
			"error":     err.Error(),
		}).Warn("Listener manager unavailable, job listeners not bound")
		result.Err = err
		return result
	}

	var errs *multierror.Error
	for _, name := range listenerNames {
		if err := r.addMatcher(manager, name, key); err != nil {
			r.logger.WithFields(logrus.Fields{
				"job_name":  key.Name,
				"job_group": key.Group,
				"listener":  name,
				"error":     err.Error(),
			}).Warn("Failed to bind job listener")
			errs = multierror.Append(errs, err)
			continue
		}

		result.Bindings = append(result.Bindings, types.ListenerBinding{
			ListenerName: name,
			Target:       key,
		})

		r.logger.WithFields(logrus.Fields{
			"job_name":  key.Name,
			"job_group": key.Group,
			"listener":  name,
		}).Debug("Job listener bound")
	}

	result.Err = errs.ErrorOrNil()
	return result
}

func (r *Registrar) listenerManager(provider types.ListenerManagerProvider) (manager types.ListenerManager, err error) {
	if provider == nil {
		return nil, fmt.Errorf("no scheduler available")
	}

	defer func() {
		if p := recover(); p != nil {
			manager, err = nil, fmt.Errorf("retrieving listener manager: %v", p)
		}
	}()

	manager, err = provider.ListenerManager()
	if err != nil {
		return nil, fmt.Errorf("retrieving listener manager: %w", err)
	}
	if manager == nil {
		return nil, fmt.Errorf("retrieving listener manager: scheduler returned none")
	}
	return manager, nil
}

func (r *Registrar) addMatcher(manager types.ListenerManager, name string, key types.JobKey) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener %s: %v", name, p)
		}
	}()

	if err := manager.AddJobListenerMatcher(name, types.KeyEquals(key)); err != nil {
		return fmt.Errorf("listener %s: %w", name, err)
	}
	return nil
}
