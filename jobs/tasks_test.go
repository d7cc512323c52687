package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipCascadeTaskRoundTrip(t *testing.T) {
	payload := MembershipCascadePayload{Kind: "organization", ID: uuid.New()}
	task, err := NewMembershipCascadeTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskMembershipCascade, task.Type())

	var decoded MembershipCascadePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload, decoded)
}

func TestMalformedCascadePayloadSkipsRetry(t *testing.T) {
	tasks := &Tasks{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := tasks.HandleMembershipCascade(context.Background(),
		asynq.NewTask(TaskMembershipCascade, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	bad, _ := json.Marshal(MembershipCascadePayload{Kind: "galaxy", ID: uuid.New()})
	err = tasks.HandleMembershipCascade(context.Background(),
		asynq.NewTask(TaskMembershipCascade, bad))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
