package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T, rig *testRig, fetcher mapFetcher) (*RelayService, *recordingMessenger) {
	t.Helper()
	msg := &recordingMessenger{}
	match := NewMatchService(rig.models, rig.store, DefaultMatchConfig())
	return NewRelayService(match, fetcher, msg, NewJobTracker(time.Minute)), msg
}

func TestRelayService_ProcessFound(t *testing.T) {
	rig := newTestRig()
	product := testPNG(t, 60, 60, 42)
	register(t, rig, "Casio F91W", product)

	relay, msg := newRelay(t, rig, mapFetcher{"http://cdn.test/photo.jpg": product})
	relay.tracker.Create("job-1", "user-1", "http://cdn.test/photo.jpg")

	relay.Process(context.Background(), "job-1", "user-1", "http://cdn.test/photo.jpg")

	sent := msg.messages()
	require.Len(t, sent, 3)
	assert.Equal(t, ReplyAnalyzing, sent[0].text)
	assert.Contains(t, sent[1].text, "Product: Casio F91W")
	assert.Regexp(t, `Confidence: (99|100)%`, sent[1].text)
	assert.Regexp(t, `^http://media\.test/media/CasioF91W_`, sent[2].image)
	for _, m := range sent {
		assert.Equal(t, "user-1", m.recipient)
	}

	job, ok := relay.Tracker().Get("job-1")
	require.True(t, ok)
	assert.Equal(t, JobComplete, job.Status)
	assert.Equal(t, "found", job.Outcome)
	assert.Equal(t, "Casio F91W", job.Product)
}

func TestRelayService_ProcessNotFound(t *testing.T) {
	rig := newTestRig()
	relay, msg := newRelay(t, rig, mapFetcher{"http://cdn.test/x.png": testPNG(t, 20, 20, 1)})
	relay.tracker.Create("job-2", "user-2", "http://cdn.test/x.png")

	relay.Process(context.Background(), "job-2", "user-2", "http://cdn.test/x.png")

	sent := msg.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, ReplyNotSure, sent[1].text)

	job, _ := relay.Tracker().Get("job-2")
	assert.Equal(t, "not_found", job.Outcome)
}

func TestRelayService_ProcessFetchFailure(t *testing.T) {
	rig := newTestRig()
	relay, msg := newRelay(t, rig, mapFetcher{})
	relay.tracker.Create("job-3", "user-3", "http://cdn.test/missing.png")

	relay.Process(context.Background(), "job-3", "user-3", "http://cdn.test/missing.png")

	sent := msg.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, ReplyAnalyzing, sent[0].text)
	assert.Equal(t, ReplyDownloadFailed, sent[1].text)

	job, _ := relay.Tracker().Get("job-3")
	assert.Equal(t, JobError, job.Status)
	assert.Equal(t, OutcomeDownloadFailed, job.Outcome)
	assert.Contains(t, job.Error, "fetch image: 404 not found")
}

func TestRelayService_ProcessUndecodableImage(t *testing.T) {
	rig := newTestRig()
	relay, msg := newRelay(t, rig, mapFetcher{"http://cdn.test/bad.png": []byte("not an image")})
	relay.tracker.Create("job-5", "user-5", "http://cdn.test/bad.png")

	relay.Process(context.Background(), "job-5", "user-5", "http://cdn.test/bad.png")

	sent := msg.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, ReplySystemError, sent[1].text)

	job, _ := relay.Tracker().Get("job-5")
	assert.Equal(t, JobComplete, job.Status)
	assert.Equal(t, "failed", job.Outcome)
}

func TestRelayService_Enqueue(t *testing.T) {
	rig := newTestRig()
	relay, msg := newRelay(t, rig, mapFetcher{"http://cdn.test/a.png": testPNG(t, 20, 20, 3)})

	id := relay.Enqueue("user-4", "http://cdn.test/a.png")
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		job, ok := relay.Tracker().Get(id)
		return ok && job.Done()
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, msg.messages())
}

func TestRelayService_Greet(t *testing.T) {
	rig := newTestRig()
	relay, msg := newRelay(t, rig, nil)

	require.NoError(t, relay.Greet(context.Background(), "user-5"))
	assert.Equal(t, []sentMessage{{recipient: "user-5", text: ReplyGreeting}}, msg.messages())
}

func TestIsGreeting(t *testing.T) {
	assert.True(t, IsGreeting("Hi there"))
	assert.True(t, IsGreeting("HELLO"))
	assert.False(t, IsGreeting("price?"))
	assert.False(t, IsGreeting(""))
}
