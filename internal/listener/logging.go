package listener

import (
	"context"
	"time"

	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/0xPuncker/jobwire/pkg/utils"
	"github.com/sirupsen/logrus"
)

// LoggingListener writes an entry for every execution it is matched to.
type LoggingListener struct {
	name   string
	logger *logrus.Logger
}

func NewLoggingListener(name string, logger *logrus.Logger) *LoggingListener {
	return &LoggingListener{
		name:   name,
		logger: logger,
	}
}

func (l *LoggingListener) Name() string {
	return l.name
}

func (l *LoggingListener) JobToBeExecuted(_ context.Context, exec types.JobExecution) {
	key := exec.Descriptor.Key()
	l.logger.WithFields(logrus.Fields{
		"listener":  l.name,
		"job_name":  key.Name,
		"job_group": key.Group,
		"fire_time": exec.FireTime.Format(time.RFC3339),
	}).Info("Job to be executed")
}

func (l *LoggingListener) JobWasExecuted(_ context.Context, exec types.JobExecution, duration time.Duration, err error) {
	key := exec.Descriptor.Key()
	entry := l.logger.WithFields(logrus.Fields{
		"listener":  l.name,
		"job_name":  key.Name,
		"job_group": key.Group,
		"duration":  utils.FormatElapsed(duration),
	})
	if err != nil {
		entry.WithError(err).Warn("Job was executed with error")
		return
	}
	entry.Info("Job was executed")
}
