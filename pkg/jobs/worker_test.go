package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/similarity"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Run(ctx context.Context, id uint, actor string) (*detection.Report, error) {
	args := m.Called(ctx, id, actor)
	r, _ := args.Get(0).(*detection.Report)
	return r, args.Error(1)
}

func (m *mockEngine) DetectAllDuplicates(ctx context.Context, id uint, actor string) (*detection.Report, error) {
	args := m.Called(ctx, id, actor)
	r, _ := args.Get(0).(*detection.Report)
	return r, args.Error(1)
}

func (m *mockEngine) Retrain(ctx context.Context, actor string) (*similarity.Model, error) {
	args := m.Called(ctx, actor)
	r, _ := args.Get(0).(*similarity.Model)
	return r, args.Error(1)
}

func testWorkerConfig() *JobConfig {
	cfg := DefaultJobConfig()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.Concurrency = 1
	// Disable cleanup to avoid accessing DB after context cancellation.
	cfg.ClaimTimeout = 0
	cfg.RetentionDays = 0
	return cfg
}

func runPool(t *testing.T, wp *WorkerPool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		wp.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForState(t *testing.T, store *JobStore, id string, state JobState) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		j, err := store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.State == state
	}, 3*time.Second, 20*time.Millisecond, "job should reach %s", state)
	return job
}

func TestWorkerRunsDetection(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	engine := &mockEngine{}
	engine.On("Run", mock.Anything, uint(7), "officer").Return(&detection.Report{
		ApplicationID: 7,
		Created:       []registry.Conflict{{ID: 1}, {ID: 2}},
		Existing:      1,
		Unresolved:    3,
		Status:        registry.StatusConflict,
		Duration:      150 * time.Millisecond,
	}, nil).Once()

	job := newTestJob(KindDetect, 7)
	job.RequestedBy = "officer"
	_, _, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)

	runPool(t, NewWorkerPool(store, NewDetectionExecutor(engine), testWorkerConfig(), nil))

	result := waitForState(t, store, job.ID, JobStateSucceeded)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Existing)
	assert.Equal(t, int64(150), result.DurationMs)
	assert.Contains(t, result.Message, "status conflict")
	engine.AssertExpectations(t)
}

func TestWorkerRunsDuplicatesAndRetrain(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	engine := &mockEngine{}
	engine.On("DetectAllDuplicates", mock.Anything, uint(3), "test-user").
		Return(&detection.Report{ApplicationID: 3, Status: registry.StatusPending}, nil).Once()
	engine.On("Retrain", mock.Anything, "test-user").
		Return(&similarity.Model{Version: 4, DocCount: 12}, nil).Once()

	dup := newTestJob(KindDuplicates, 3)
	retrain := newTestJob(KindRetrain, 0)
	for _, j := range []*Job{dup, retrain} {
		_, _, err := store.Enqueue(context.Background(), j)
		require.NoError(t, err)
	}

	runPool(t, NewWorkerPool(store, NewDetectionExecutor(engine), testWorkerConfig(), nil))

	waitForState(t, store, dup.ID, JobStateSucceeded)
	r := waitForState(t, store, retrain.ID, JobStateSucceeded)
	assert.Equal(t, "model version 4 fitted on 12 documents", r.Message)
	engine.AssertExpectations(t)
}

func TestWorkerRetriesOnFailure(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	var calls int32
	exec := ExecutorFunc(func(ctx context.Context, job *Job) (Result, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return Result{}, &detection.DetectionFailed{ApplicationID: 1, Detector: "spatial", Cause: errors.New("connection reset")}
		}
		return Result{Created: 1}, nil
	})

	job := newTestJob(KindDetect, 1)
	_, _, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)

	runPool(t, NewWorkerPool(store, exec, testWorkerConfig(), nil))

	result := waitForState(t, store, job.ID, JobStateSucceeded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "should have been called twice (fail + succeed)")
	assert.Equal(t, 2, result.AttemptCount)
	assert.Contains(t, result.LastError, "spatial")
}

func TestWorkerFailsAfterMaxRetries(t *testing.T) {
	store := NewJobStore(setupTestDB(t))

	var calls int32
	exec := ExecutorFunc(func(ctx context.Context, job *Job) (Result, error) {
		atomic.AddInt32(&calls, 1)
		return Result{}, errors.New("persistent error")
	})

	cfg := testWorkerConfig()
	cfg.MaxRetries = 2

	job := newTestJob(KindDetect, 1)
	_, _, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)

	runPool(t, NewWorkerPool(store, exec, cfg, nil))

	result := waitForState(t, store, job.ID, JobStateFailed)
	assert.Contains(t, result.Message, "Max retries exceeded")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWorkerDoesNotRetryMissingApplication(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	engine := &mockEngine{}
	engine.On("Run", mock.Anything, uint(404), "test-user").
		Return(nil, detection.ErrApplicationNotFound).Once()

	job := newTestJob(KindDetect, 404)
	_, _, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)

	runPool(t, NewWorkerPool(store, NewDetectionExecutor(engine), testWorkerConfig(), nil))

	result := waitForState(t, store, job.ID, JobStateFailed)
	assert.Equal(t, 1, result.AttemptCount)
	assert.Contains(t, result.LastError, "not found")
	engine.AssertExpectations(t)
}

func TestWorkerDisabled(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Enabled = false
	done := make(chan struct{})
	go func() {
		NewWorkerPool(NewJobStore(setupTestDB(t)), ExecutorFunc(nil), cfg, nil).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled pool should return immediately")
	}
}

func TestDetectionExecutorRejectsBadJobs(t *testing.T) {
	exec := NewDetectionExecutor(&mockEngine{})
	var perm *PermanentError

	_, err := exec.Execute(context.Background(), &Job{ID: "a", Kind: KindDetect})
	assert.ErrorAs(t, err, &perm)

	_, err = exec.Execute(context.Background(), &Job{ID: "b", Kind: "refresh"})
	assert.ErrorAs(t, err, &perm)

	engine := &mockEngine{}
	engine.On("Retrain", mock.Anything, "").Return(nil, detection.ErrNoModelStore)
	_, err = NewDetectionExecutor(engine).Execute(context.Background(), &Job{ID: "c", Kind: KindRetrain})
	assert.ErrorAs(t, err, &perm)
	assert.ErrorIs(t, err, detection.ErrNoModelStore)
}
