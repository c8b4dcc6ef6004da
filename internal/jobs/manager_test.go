package jobs_test

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/config"
	"github.com/loanwell/lectern-go/internal/jobs"
	"github.com/loanwell/lectern-go/internal/status"
)

type fakeJobContext struct {
	db     *sql.DB
	cfg    *config.Config
	books  *bookdb.Store
	status *status.Registry
	jobMgr *jobs.JobManager
}

func (f *fakeJobContext) DB() *sql.DB                     { return f.db }
func (f *fakeJobContext) Config() *config.Config          { return f.cfg }
func (f *fakeJobContext) Books() *bookdb.Store            { return f.books }
func (f *fakeJobContext) StatusRegistry() *status.Registry { return f.status }
func (f *fakeJobContext) JobManager() *jobs.JobManager    { return f.jobMgr }

func newFakeContext() *fakeJobContext {
	return &fakeJobContext{cfg: &config.Config{}, status: status.NewRegistry(nil)}
}

func TestManager_NewManager(t *testing.T) {
	mgr := jobs.NewManager()
	assert.NotNil(t, mgr)
	assert.Empty(t, mgr.GetStatus())
}

func TestManager_RegisterAndGetStatus(t *testing.T) {
	mgr := jobs.NewManager()
	mgr.Register("jobA", func(ctx jobs.JobContext) {})
	mgr.Register("jobB", func(ctx jobs.JobContext) {})
	statuses := mgr.GetStatus()
	assert.Len(t, statuses, 2)
	var foundA, foundB bool
	for _, s := range statuses {
		if s.Name == "jobA" {
			foundA = true
		}
		if s.Name == "jobB" {
			foundB = true
		}
	}
	assert.True(t, foundA && foundB)
}

func TestManager_RunJob_SuccessAndStatus(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager()
	ctx.jobMgr = mgr
	var called bool
	mgr.Register("jobX", func(ctx jobs.JobContext) { called = true })
	err := mgr.RunJob("jobX", ctx)
	assert.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, called)
	statuses := mgr.GetStatus()
	assert.Equal(t, "success", statuses[0].Status)
}

func TestManager_RunJob_AlreadyRunning(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager()
	ctx.jobMgr = mgr
	block := make(chan struct{})
	mgr.Register("jobY", func(ctx jobs.JobContext) { <-block })
	_ = mgr.RunJob("jobY", ctx)
	err := mgr.RunJob("jobY", ctx)
	assert.Error(t, err)
	close(block)
}

func TestManager_RunJob_NotFound(t *testing.T) {
	mgr := jobs.NewManager()
	err := mgr.RunJob("nojob", newFakeContext())
	assert.Error(t, err)
}

func TestManager_RunJob_Panic(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager()
	ctx.jobMgr = mgr
	mgr.Register("panicJob", func(ctx jobs.JobContext) { panic("fail") })
	err := mgr.RunJob("panicJob", ctx)
	assert.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	statuses := mgr.GetStatus()
	assert.Equal(t, "failed", statuses[0].Status)
	assert.Contains(t, statuses[0].Message, "panicked")
}

func TestManager_Concurrency(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager()
	ctx.jobMgr = mgr
	var mu sync.Mutex
	var count int
	mgr.Register("jobC", func(ctx jobs.JobContext) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	wg := sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			_ = mgr.RunJob("jobC", ctx)
			wg.Done()
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, count, "job should only run once concurrently")
	mu.Unlock()
}
