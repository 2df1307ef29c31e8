package jobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvida/mangrove/internal/jobs"
)

func TestJobManagerRegisterAndStatus(t *testing.T) {
	jm := jobs.NewManager(nil)
	jm.Register("series-sweep", "Series sweep", func(ctx jobs.JobContext) {})

	statuses := jm.GetStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, "series-sweep", statuses[0].ID)
	assert.Equal(t, "Series sweep", statuses[0].Name)
	assert.Equal(t, "idle", statuses[0].Status)
}

func TestJobManagerRunJob(t *testing.T) {
	jm := jobs.NewManager(nil)

	ran := make(chan struct{})
	jm.Register("series-sweep", "Series sweep", func(ctx jobs.JobContext) {
		close(ran)
	})

	err := jm.RunJob("series-sweep", nil)
	require.NoError(t, err)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("Job did not run")
	}

	assert.Eventually(t, func() bool {
		return jm.GetStatus()[0].Status == "success"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobManagerUnknownJob(t *testing.T) {
	jm := jobs.NewManager(nil)
	err := jm.RunJob("does-not-exist", nil)
	assert.Error(t, err)
}

func TestJobManagerSingleJobAtATime(t *testing.T) {
	jm := jobs.NewManager(nil)

	release := make(chan struct{})
	started := make(chan struct{})
	jm.Register("slow", "Slow job", func(ctx jobs.JobContext) {
		close(started)
		<-release
	})
	jm.Register("other", "Other job", func(ctx jobs.JobContext) {})

	require.NoError(t, jm.RunJob("slow", nil))
	<-started

	err := jm.RunJob("other", nil)
	assert.Error(t, err, "a second job must be rejected while one is running")

	close(release)
	assert.Eventually(t, func() bool {
		return jm.RunJob("other", nil) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobManagerRecoversFromPanic(t *testing.T) {
	jm := jobs.NewManager(nil)
	jm.Register("explosive", "Explosive job", func(ctx jobs.JobContext) {
		panic("boom")
	})

	require.NoError(t, jm.RunJob("explosive", nil))

	assert.Eventually(t, func() bool {
		return jm.GetStatus()[0].Status == "failed"
	}, 2*time.Second, 10*time.Millisecond)

	// The manager is free again after the panic.
	jm.Register("ok", "Fine job", func(ctx jobs.JobContext) {})
	assert.Eventually(t, func() bool {
		return jm.RunJob("ok", nil) == nil
	}, 2*time.Second, 10*time.Millisecond)
}
