package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportPayload struct {
	Month string `json:"month"`
}

func receive(t *testing.T, ch <-chan Job) Job {
	t.Helper()
	select {
	case job, ok := <-ch:
		require.True(t, ok, "channel closed")
		return job
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for job")
	}
	return Job{}
}

func TestNewJob(t *testing.T) {
	job, err := NewJob(JobGenerateReport, reportPayload{Month: "2024-03"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobGenerateReport, job.Type)

	var p reportPayload
	require.NoError(t, job.Decode(&p))
	assert.Equal(t, "2024-03", p.Month)

	assert.Error(t, Job{Type: "x", Payload: []byte("{")}.Decode(&p))
}

func TestInMemoryQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(4)
	job, err := NewJob(JobGenerateReport, reportPayload{Month: "2024-03"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, job))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, job, receive(t, ch))

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "consumer closes after cancel")
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, Job{Type: "x"}), context.Canceled)
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "test:jobs", nil)
	q.timeout = 100 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := NewJob(JobGenerateReport, reportPayload{Month: "2024-02"})
	require.NoError(t, err)
	second, err := NewJob(JobGenerateReport, reportPayload{Month: "2024-03"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, first))
	_, err = mr.Lpush("test:jobs", "not json")
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, second))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	got := receive(t, ch)
	assert.Equal(t, first.ID, got.ID)
	assert.JSONEq(t, string(first.Payload), string(got.Payload))
	got = receive(t, ch)
	assert.Equal(t, second.ID, got.ID, "undecodable entry is skipped")
}
