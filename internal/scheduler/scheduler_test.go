package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/pkg/types"
)

type fakeInjector struct {
	mu    sync.Mutex
	opts  []types.InjectOptions
	sessions []string
}

func (f *fakeInjector) Inject(ctx context.Context, session, message string, opts types.InjectOptions) (types.InjectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = append(f.opts, opts)
	f.sessions = append(f.sessions, session)
	return types.InjectResult{Response: "ok"}, nil
}

func (f *fakeInjector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opts)
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeInjector, *config.Paths) {
	t.Helper()
	paths := &config.Paths{Base: t.TempDir()}
	require.NoError(t, paths.Ensure())
	inj := &fakeInjector{}
	s := New(paths, inj)
	return s, inj, paths
}

func TestAddCronPersistsAndRegisters(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	sched, err := s.AddCron("nightly", "s1", "do the thing", "0 2 * * *", false)
	require.NoError(t, err)
	assert.Equal(t, types.ScheduleCron, sched.Kind)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "nightly", list[0].Name)

	_, ok := s.cronIDs["nightly"]
	assert.True(t, ok)
}

func TestAddCronDuplicateNameFails(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	_, err := s.AddCron("dup", "s1", "m", "* * * * *", false)
	require.NoError(t, err)

	_, err = s.AddCron("dup", "s1", "m", "* * * * *", false)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAddCronInvalidExpressionFails(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	_, err := s.AddCron("bad", "s1", "m", "not a cron expr", false)
	require.Error(t, err)
	assert.Empty(t, s.List())
}

func TestRemoveUnknownReturnsErrNotFound(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	err := s.Remove("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFireCronOnceRemovesScheduleAndInjectsAtOwnerTrust(t *testing.T) {
	s, inj, _ := newTestScheduler(t)
	_, err := s.AddCron("onboot", "s1", "hello", "* * * * *", true)
	require.NoError(t, err)

	s.fireCron("onboot")

	require.Equal(t, 1, inj.callCount())
	assert.Equal(t, "s1", inj.sessions[0])
	assert.Equal(t, types.SourceScheduler, inj.opts[0].Source.Type)
	assert.Empty(t, s.List())
	_, ok := s.cronIDs["onboot"]
	assert.False(t, ok)
}

func TestFireCronWithoutOnceKeepsSchedule(t *testing.T) {
	s, inj, _ := newTestScheduler(t)
	_, err := s.AddCron("recurring", "s1", "hello", "* * * * *", false)
	require.NoError(t, err)

	s.fireCron("recurring")

	require.Equal(t, 1, inj.callCount())
	require.Len(t, s.List(), 1)
}

func TestOneShotFiresWhenDueAndIsRemoved(t *testing.T) {
	s, inj, _ := newTestScheduler(t)
	s.tickInterval = 10 * time.Millisecond

	_, err := s.AddOneShot("once", "s1", "wake up", time.Now().Add(-time.Second).UnixMilli())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return inj.callCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.List())
}

func TestOneShotNotYetDueDoesNotFire(t *testing.T) {
	s, inj, _ := newTestScheduler(t)
	s.tickInterval = 10 * time.Millisecond

	_, err := s.AddOneShot("later", "s1", "not yet", time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, inj.callCount())
	assert.Len(t, s.List(), 1)
}

func TestLoadResumesPersistedSchedules(t *testing.T) {
	s1, _, paths := newTestScheduler(t)
	_, err := s1.AddCron("nightly", "s1", "m", "0 2 * * *", false)
	require.NoError(t, err)
	_, err = s1.AddOneShot("later", "s1", "m", time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)

	inj2 := &fakeInjector{}
	s2 := New(paths, inj2)
	require.NoError(t, s2.Load(context.Background()))

	list := s2.List()
	names := map[string]bool{}
	for _, sched := range list {
		names[sched.Name] = true
	}
	assert.True(t, names["nightly"])
	assert.True(t, names["later"])

	_, ok := s2.cronIDs["nightly"]
	assert.True(t, ok)
}
