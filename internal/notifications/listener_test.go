package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhook struct {
	mu       sync.Mutex
	messages []SlackMessage
	status   int
}

func (wh *webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg SlackMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
		wh.mu.Lock()
		wh.messages = append(wh.messages, msg)
		wh.mu.Unlock()
	}
	w.WriteHeader(wh.status)
}

func testExecution() types.JobExecution {
	key := types.NewJobKey("cleanupJob", "maintenance")
	return types.JobExecution{
		Descriptor: types.NewJobDescriptor(key, types.NonConcurrent, false, true, nil),
		FireTime:   time.Date(2025, 4, 25, 18, 15, 5, 0, time.UTC),
	}
}

func TestSlackListenerSendsFailures(t *testing.T) {
	wh := &webhook{status: http.StatusOK}
	server := httptest.NewServer(wh)
	defer server.Close()

	logger, _ := test.NewNullLogger()
	slack, err := NewSlackService(logger, server.URL)
	require.NoError(t, err)

	l := NewSlackListener("slackListener", slack, logger, false)
	l.JobWasExecuted(context.Background(), testExecution(), time.Second, nil)
	l.JobWasExecuted(context.Background(), testExecution(), time.Second, errors.New("disk full"))

	wh.mu.Lock()
	defer wh.mu.Unlock()
	require.Len(t, wh.messages, 1)
	msg := wh.messages[0]
	assert.Contains(t, msg.Text, "maintenance.cleanupJob")
	assert.Contains(t, msg.Text, "failed")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "danger", msg.Attachments[0].Color)
	assert.Equal(t, "disk full", msg.Attachments[0].Text)
	assert.Equal(t, "Maintenance", msg.Attachments[0].Fields[1].Value)
}

func TestSlackListenerNotifySuccess(t *testing.T) {
	wh := &webhook{status: http.StatusOK}
	server := httptest.NewServer(wh)
	defer server.Close()

	logger, _ := test.NewNullLogger()
	slack, err := NewSlackService(logger, server.URL)
	require.NoError(t, err)

	NewSlackListener("slackListener", slack, logger, true).
		JobWasExecuted(context.Background(), testExecution(), time.Second, nil)

	wh.mu.Lock()
	defer wh.mu.Unlock()
	require.Len(t, wh.messages, 1)
	assert.Equal(t, "good", wh.messages[0].Attachments[0].Color)
}

func TestSlackListenerLogsWebhookFailure(t *testing.T) {
	wh := &webhook{status: http.StatusInternalServerError}
	server := httptest.NewServer(wh)
	defer server.Close()

	logger, hook := test.NewNullLogger()
	slack, err := NewSlackService(logger, server.URL)
	require.NoError(t, err)

	NewSlackListener("slackListener", slack, logger, false).
		JobWasExecuted(context.Background(), testExecution(), time.Second, errors.New("disk full"))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestNewSlackServiceRequiresWebhook(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "")
	logger, _ := test.NewNullLogger()

	_, err := NewSlackService(logger, "")
	assert.Error(t, err)
}
