package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinyopds/tinyopds/pkg/testutils"
)

func TestCreateAndRetrieveJob(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &Job{
		Type:       JobTypeScan,
		Status:     JobStatusPending,
		DataParsed: &JobScanData{LibraryPath: "/books", Full: true},
	}
	err := svc.CreateJob(ctx, job)
	require.NoError(t, err)
	require.NotZero(t, job.ID)
	assert.JSONEq(t, `{"library_path":"/books","full":true}`, job.Data)

	got, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	assert.Equal(t, JobTypeScan, got.Type)
	assert.Equal(t, JobStatusPending, got.Status)

	data, ok := got.DataParsed.(*JobScanData)
	require.True(t, ok)
	assert.Equal(t, "/books", data.LibraryPath)
	assert.True(t, data.Full)
}

func TestRetrieveJob_NotFound(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	id := 42
	_, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &id})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Job not found")
}

func TestListJobsExcludesClaimedProcess(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	claimed := &Job{Type: JobTypeScan, Status: JobStatusPending, DataParsed: &JobScanData{}}
	require.NoError(t, svc.CreateJob(ctx, claimed))
	free := &Job{Type: JobTypeScan, Status: JobStatusPending, DataParsed: &JobScanData{}}
	require.NoError(t, svc.CreateJob(ctx, free))

	pid := "deadbeef"
	claimed.Status = JobStatusInProgress
	claimed.ProcessID = &pid
	err := svc.UpdateJob(ctx, claimed, UpdateJobOptions{Columns: []string{"status", "process_id"}})
	require.NoError(t, err)

	listed, err := svc.ListJobs(ctx, ListJobsOptions{
		Statuses:           []string{JobStatusPending, JobStatusInProgress},
		ProcessIDToExclude: &pid,
	})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, free.ID, listed[0].ID)
}

func TestUpdateJobProgress(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &Job{Type: JobTypeScan, Status: JobStatusInProgress, DataParsed: &JobScanData{}}
	require.NoError(t, svc.CreateJob(ctx, job))

	job.Progress = 75
	err := svc.UpdateJob(ctx, job, UpdateJobOptions{Columns: []string{"progress"}})
	require.NoError(t, err)

	got, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	assert.Equal(t, 75, got.Progress)
	// Status column was not listed, so it must be untouched.
	assert.Equal(t, JobStatusInProgress, got.Status)
}

func TestHasActiveJobByType_NoJobs(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	hasActive, err := svc.HasActiveJobByType(ctx, JobTypeScan)
	require.NoError(t, err)
	assert.False(t, hasActive)
}

func TestHasActiveJobByType_PendingJob(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &Job{
		Type:       JobTypeScan,
		Status:     JobStatusPending,
		DataParsed: &JobScanData{},
	}
	err := svc.CreateJob(ctx, job)
	require.NoError(t, err)

	hasActive, err := svc.HasActiveJobByType(ctx, JobTypeScan)
	require.NoError(t, err)
	assert.True(t, hasActive)
}

func TestHasActiveJobByType_InProgressJob(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &Job{
		Type:       JobTypeScan,
		Status:     JobStatusInProgress,
		DataParsed: &JobScanData{},
	}
	err := svc.CreateJob(ctx, job)
	require.NoError(t, err)

	hasActive, err := svc.HasActiveJobByType(ctx, JobTypeScan)
	require.NoError(t, err)
	assert.True(t, hasActive)
}

func TestHasActiveJobByType_CompletedJob(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &Job{
		Type:       JobTypeScan,
		Status:     JobStatusCompleted,
		DataParsed: &JobScanData{},
	}
	err := svc.CreateJob(ctx, job)
	require.NoError(t, err)

	hasActive, err := svc.HasActiveJobByType(ctx, JobTypeScan)
	require.NoError(t, err)
	assert.False(t, hasActive)
}

func TestHasActiveJobByType_MultipleJobs(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job1 := &Job{
		Type:       JobTypeScan,
		Status:     JobStatusCompleted,
		DataParsed: &JobScanData{},
	}
	err := svc.CreateJob(ctx, job1)
	require.NoError(t, err)

	job2 := &Job{
		Type:       JobTypeScan,
		Status:     JobStatusPending,
		DataParsed: &JobScanData{},
	}
	err = svc.CreateJob(ctx, job2)
	require.NoError(t, err)

	hasActive, err := svc.HasActiveJobByType(ctx, JobTypeScan)
	require.NoError(t, err)
	assert.True(t, hasActive)
}
