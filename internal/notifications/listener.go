package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/0xPuncker/jobwire/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SlackListener posts job results to Slack. Only failures are sent unless
// notifySuccess is set.
type SlackListener struct {
	name          string
	slack         *SlackService
	logger        *logrus.Logger
	notifySuccess bool
}

func NewSlackListener(name string, slack *SlackService, logger *logrus.Logger, notifySuccess bool) *SlackListener {
	return &SlackListener{
		name:          name,
		slack:         slack,
		logger:        logger,
		notifySuccess: notifySuccess,
	}
}

func (l *SlackListener) Name() string {
	return l.name
}

func (l *SlackListener) JobToBeExecuted(context.Context, types.JobExecution) {}

func (l *SlackListener) JobWasExecuted(_ context.Context, exec types.JobExecution, duration time.Duration, err error) {
	if err == nil && !l.notifySuccess {
		return
	}

	key := exec.Descriptor.Key()
	if sendErr := l.slack.SendSlackMessage(formatJobMessage(exec, duration, err)); sendErr != nil {
		l.logger.WithFields(logrus.Fields{
			"listener":  l.name,
			"job_name":  key.Name,
			"job_group": key.Group,
			"error":     sendErr.Error(),
		}).Error("Failed to send Slack notification")
	}
}

func formatJobMessage(exec types.JobExecution, duration time.Duration, err error) *SlackMessage {
	key := exec.Descriptor.Key()

	status, color, icon := "success", "good", "✅"
	if err != nil {
		status, color, icon = "failed", "danger", "❌"
	}

	fields := []Field{
		{
			Title: "Job",
			Value: key.Name,
			Short: true,
		},
		{
			Title: "Group",
			Value: cases.Title(language.English).String(key.Group),
			Short: true,
		},
		{
			Title: "Status",
			Value: status,
			Short: true,
		},
		{
			Title: "Duration",
			Value: utils.FormatElapsed(duration),
			Short: true,
		},
	}

	message := &SlackMessage{
		Text: fmt.Sprintf("%s Job %s %s", icon, key, status),
		Attachments: []Attachment{
			{
				Color:  color,
				Fields: fields,
				Footer: fmt.Sprintf("Mode: %s | Fired: %s",
					exec.Descriptor.Mode(),
					exec.FireTime.Format("Mon, 02 Jan 2006 15:04:05 MST")),
				Ts: exec.FireTime.Unix(),
			},
		},
	}

	if err != nil {
		message.Attachments[0].Text = err.Error()
	}

	return message
}
