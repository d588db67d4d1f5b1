package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	err  error
	runs int
}

func (j *fakeJob) Run() error {
	j.runs++
	return j.err
}

func (j *fakeJob) Name() string { return j.name }

func TestAddJobRejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a cron expression", &fakeJob{name: "broken"})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestAddJobAcceptsFiveFieldSchedules(t *testing.T) {
	s := New(zerolog.Nop())

	// The configuration defaults use the standard 5-field format
	require.NoError(t, s.AddJob("0 9 * * *", &fakeJob{name: "staleness_check"}))
	require.NoError(t, s.AddJob("30 * * * *", &fakeJob{name: "cache_prune"}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "staleness_check", jobs[0].Name)
	assert.Equal(t, "0 9 * * *", jobs[0].Schedule)
	assert.Equal(t, "cache_prune", jobs[1].Name)
	assert.Equal(t, "30 * * * *", jobs[1].Schedule)
	assert.Zero(t, jobs[0].Runs)
	assert.Nil(t, jobs[0].LastRun)
}

func TestRunNowRecordsOutcome(t *testing.T) {
	s := New(zerolog.Nop())

	ok := &fakeJob{name: "ok_job"}
	failing := &fakeJob{name: "failing_job", err: errors.New("boom")}
	require.NoError(t, s.AddJob("@hourly", ok))
	require.NoError(t, s.AddJob("@hourly", failing))

	require.NoError(t, s.RunNow(ok))
	assert.EqualError(t, s.RunNow(failing), "boom")

	jobs := s.Jobs()
	require.Len(t, jobs, 2)

	assert.Equal(t, 1, jobs[0].Runs)
	require.NotNil(t, jobs[0].LastRun)
	assert.Empty(t, jobs[0].LastError)

	assert.Equal(t, 1, jobs[1].Runs)
	assert.Equal(t, "boom", jobs[1].LastError)
}

func TestRunNowUnregisteredJobStillRuns(t *testing.T) {
	s := New(zerolog.Nop())

	job := &fakeJob{name: "adhoc"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
	assert.Empty(t, s.Jobs())
}
