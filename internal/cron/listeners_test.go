package cron

import (
	"context"
	"testing"
	"time"

	"github.com/0xPuncker/jobwire/internal/jobdetail"
	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerReceivesOnlyBoundJob(t *testing.T) {
	logger := newTestLogger()
	scheduler := NewScheduler(logger, types.JobConfig{})
	scheduler.RegisterTask("noop", func(context.Context, *types.JobDescriptor) error { return nil })

	audit := &recordingListener{name: "auditListener"}
	metrics := &recordingListener{name: "metricsListener"}
	require.NoError(t, scheduler.AddJobListener(audit))
	require.NoError(t, scheduler.AddJobListener(metrics))

	factory, err := jobdetail.NewFactory(types.JobDetailConfig{
		Name:          "reportJob",
		Group:         "reports",
		Concurrent:    true,
		Durable:       true,
		ListenerNames: []string{"auditListener", "metricsListener"},
	}, scheduler, logger)
	require.NoError(t, err)
	require.NoError(t, factory.BindErr())

	unbound := newDescriptor(t, "otherJob", "reports", types.Concurrent, true)
	require.NoError(t, scheduler.AddJob(factory.Object(), "noop", ""))
	require.NoError(t, scheduler.AddJob(unbound, "noop", ""))

	require.NoError(t, scheduler.TriggerJob(unbound.Key()))
	require.NoError(t, scheduler.TriggerJob(factory.Object().Key()))

	require.Eventually(t, func() bool {
		return len(audit.executed()) == 1 && len(metrics.executed()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	scheduler.Shutdown()

	assert.Equal(t, []types.JobKey{factory.Object().Key()}, audit.executed())
	assert.Equal(t, []types.JobKey{factory.Object().Key()}, metrics.executed())

	audit.mu.Lock()
	assert.Equal(t, audit.before, audit.after)
	audit.mu.Unlock()
}

func TestUnknownListenerDoesNotFailJob(t *testing.T) {
	logger := newTestLogger()
	scheduler := NewScheduler(logger, types.JobConfig{})
	require.NoError(t, scheduler.AddJobListener(&recordingListener{name: "auditListener"}))

	factory, err := jobdetail.NewFactory(types.JobDetailConfig{
		Name:          "reportJob",
		Group:         "reports",
		Durable:       true,
		ListenerNames: []string{"missingListener", "auditListener"},
	}, scheduler, logger)
	require.NoError(t, err)

	assert.ErrorIs(t, factory.BindErr(), ErrListenerNotFound)
	require.Len(t, factory.Bindings(), 1)
	assert.Equal(t, "auditListener", factory.Bindings()[0].ListenerName)
	assert.NotNil(t, factory.Object())
}

func TestListenerManagerAfterShutdown(t *testing.T) {
	logger := newTestLogger()
	scheduler := NewScheduler(logger, types.JobConfig{})
	require.NoError(t, scheduler.AddJobListener(&recordingListener{name: "auditListener"}))
	scheduler.Shutdown()

	_, err := scheduler.ListenerManager()
	assert.ErrorIs(t, err, ErrSchedulerShutdown)

	factory, err := jobdetail.NewFactory(types.JobDetailConfig{
		Name:          "reportJob",
		Group:         "reports",
		ListenerNames: []string{"auditListener"},
	}, scheduler, logger)
	require.NoError(t, err)
	assert.ErrorIs(t, factory.BindErr(), ErrSchedulerShutdown)
	assert.Equal(t, "reportJob", factory.Object().Key().Name)
}

func TestListenerRegistry(t *testing.T) {
	scheduler := NewScheduler(newTestLogger(), types.JobConfig{})

	require.NoError(t, scheduler.AddJobListener(&recordingListener{name: "b"}))
	require.NoError(t, scheduler.AddJobListener(&recordingListener{name: "a"}, types.GroupEquals("reports")))
	assert.ErrorIs(t, scheduler.AddJobListener(&recordingListener{name: "a"}), ErrListenerRegistered)
	assert.Equal(t, []string{"a", "b"}, scheduler.ListenerNames())

	matched := scheduler.matchingListeners(types.NewJobKey("any", "reports"))
	require.Len(t, matched, 1)
	assert.Equal(t, "a", matched[0].Name())
	assert.Empty(t, scheduler.matchingListeners(types.NewJobKey("any", "billing")))

	assert.ErrorIs(t, scheduler.AddJobListenerMatcher("c", types.AllJobs()), ErrListenerNotFound)
	require.NoError(t, scheduler.RemoveJobListener("a"))
	assert.ErrorIs(t, scheduler.RemoveJobListener("a"), ErrListenerNotFound)
	assert.Equal(t, []string{"b"}, scheduler.ListenerNames())
}

func TestLoadPredefinedJobs(t *testing.T) {
	logger := newTestLogger()
	scheduler := NewScheduler(logger, types.JobConfig{})
	scheduler.RegisterTask("noop", func(context.Context, *types.JobDescriptor) error { return nil })
	require.NoError(t, scheduler.AddJobListener(&recordingListener{name: "auditListener"}))

	jobs := []types.Job{
		{
			JobDetailConfig: types.JobDetailConfig{
				Name: "reportJob", Group: "reports", Concurrent: true, Durable: true,
				ListenerNames: []string{"auditListener", "unknownListener"},
			},
			Schedule: "@hourly",
			TaskName: "noop",
			Enabled:  true,
		},
		{
			JobDetailConfig: types.JobDetailConfig{Name: "rebuild", Group: "maintenance", Durable: true},
			TaskName:        "noop",
			Enabled:         true,
		},
		{
			JobDetailConfig: types.JobDetailConfig{Name: "disabled", Group: "maintenance"},
			TaskName:        "noop",
			Enabled:         false,
		},
	}

	require.NoError(t, scheduler.LoadPredefinedJobs(jobs))

	listed := scheduler.ListJobs()
	require.Len(t, listed, 2)
	assert.Equal(t, "rebuild", listed[0].Name)
	assert.Equal(t, "non-concurrent", listed[0].Mode)
	assert.False(t, listed[0].Scheduled)
	assert.Equal(t, "reportJob", listed[1].Name)
	assert.True(t, listed[1].Scheduled)
}

func TestLoadPredefinedJobsErrors(t *testing.T) {
	scheduler := NewScheduler(newTestLogger(), types.JobConfig{})
	scheduler.RegisterTask("noop", func(context.Context, *types.JobDescriptor) error { return nil })

	err := scheduler.LoadPredefinedJobs([]types.Job{{
		JobDetailConfig: types.JobDetailConfig{Name: "nameless-group", Durable: true},
		TaskName:        "noop",
		Enabled:         true,
	}})
	var cfgErr *jobdetail.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	err = scheduler.LoadPredefinedJobs([]types.Job{{
		JobDetailConfig: types.JobDetailConfig{Name: "transient", Group: "tests"},
		TaskName:        "noop",
		Enabled:         true,
	}})
	assert.ErrorIs(t, err, ErrNotDurable)
}

func TestLoadPredefinedJobsRejectsBeforeBinding(t *testing.T) {
	scheduler := NewScheduler(newTestLogger(), types.JobConfig{})
	scheduler.RegisterTask("noop", func(context.Context, *types.JobDescriptor) error { return nil })
	require.NoError(t, scheduler.AddJobListener(&recordingListener{name: "auditListener"}))

	tests := []struct {
		name    string
		job     types.Job
		wantErr error
	}{
		{
			name: "non-durable without schedule",
			job: types.Job{
				JobDetailConfig: types.JobDetailConfig{Name: "transient", Group: "tests", ListenerNames: []string{"auditListener"}},
				TaskName:        "noop",
				Enabled:         true,
			},
			wantErr: ErrNotDurable,
		},
		{
			name: "unknown task",
			job: types.Job{
				JobDetailConfig: types.JobDetailConfig{Name: "orphan", Group: "tests", Durable: true, ListenerNames: []string{"auditListener"}},
				TaskName:        "missing",
				Enabled:         true,
			},
			wantErr: ErrTaskNotRegistered,
		},
		{
			name: "invalid schedule",
			job: types.Job{
				JobDetailConfig: types.JobDetailConfig{Name: "broken", Group: "tests", ListenerNames: []string{"auditListener"}},
				Schedule:        "whenever",
				TaskName:        "noop",
				Enabled:         true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := scheduler.LoadPredefinedJobs([]types.Job{tt.job})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Empty(t, scheduler.ListJobs())
	scheduler.lmu.RLock()
	defer scheduler.lmu.RUnlock()
	assert.Empty(t, scheduler.listeners["auditListener"].matchers)
}
