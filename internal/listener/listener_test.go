package listener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execution(name, group string) types.JobExecution {
	key := types.NewJobKey(name, group)
	return types.JobExecution{
		Descriptor: types.NewJobDescriptor(key, types.Concurrent, true, false, map[string]string{types.JobNameKey: name}),
		FireTime:   time.Now(),
	}
}

func TestHistoryListenerKeepsNewestFirst(t *testing.T) {
	history := NewHistoryListener("historyListener", time.Minute, 2)
	exec := execution("reportJob", "reports")

	history.JobWasExecuted(context.Background(), exec, 10*time.Millisecond, nil)
	history.JobWasExecuted(context.Background(), exec, 20*time.Millisecond, errors.New("failed"))
	history.JobWasExecuted(context.Background(), exec, 30*time.Millisecond, nil)

	recent := history.Recent(exec.Descriptor.Key())
	require.Len(t, recent, 2)
	assert.Equal(t, 30*time.Millisecond, recent[0].Duration)
	assert.Empty(t, recent[0].Error)
	assert.Equal(t, "failed", recent[1].Error)

	assert.Nil(t, history.Recent(types.NewJobKey("reportJob", "other")))
	assert.Equal(t, "historyListener", history.Name())
}

func TestHistoryListenerDefaults(t *testing.T) {
	history := NewHistoryListener("historyListener", 0, 0)
	assert.Equal(t, defaultHistoryTTL, history.ttl)
	assert.Equal(t, defaultHistoryLimit, history.limit)
}

func TestLoggingListener(t *testing.T) {
	logger, hook := test.NewNullLogger()
	l := NewLoggingListener("loggingListener", logger)
	exec := execution("reportJob", "reports")

	l.JobToBeExecuted(context.Background(), exec)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "reportJob", hook.LastEntry().Data["job_name"])

	l.JobWasExecuted(context.Background(), exec, time.Millisecond, errors.New("boom"))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "loggingListener", hook.LastEntry().Data["listener"])

	l.JobWasExecuted(context.Background(), exec, time.Millisecond, nil)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Len(t, hook.AllEntries(), 3)
}
