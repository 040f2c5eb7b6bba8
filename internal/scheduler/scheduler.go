package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/internal/logging"
	"github.com/wopr-network/wopr/internal/storage"
	"github.com/wopr-network/wopr/pkg/types"
)

// ErrNotFound is returned by Remove for an unknown schedule name.
var ErrNotFound = errors.New("scheduler: schedule not found")

// ErrAlreadyExists is returned by AddCron/AddOneShot for a name already in use.
var ErrAlreadyExists = errors.New("scheduler: schedule name already in use")

// Injector is the subset of *queue.Manager the scheduler needs. Firing a
// schedule is indistinguishable from any other injection once it reaches
// the queue.
type Injector interface {
	Inject(ctx context.Context, session, message string, opts types.InjectOptions) (types.InjectResult, error)
}

type state struct {
	Schedules []types.Schedule `json:"schedules"`
}

// Scheduler owns every persisted trigger and the goroutines that fire
// them. Callers must call Load once at startup and Start to begin firing.
type Scheduler struct {
	store *storage.Storage
	queue Injector

	mu        sync.Mutex
	schedules map[string]*types.Schedule
	cronIDs   map[string]cron.EntryID

	cronEngine *cron.Cron
	tickInterval time.Duration
	stop       chan struct{}
	started    bool
}

// New returns a Scheduler backed by paths.Base/scheduler.json.
func New(paths *config.Paths, q Injector) *Scheduler {
	return &Scheduler{
		store:        storage.New(paths.Base),
		queue:        q,
		schedules:    make(map[string]*types.Schedule),
		cronIDs:      make(map[string]cron.EntryID),
		cronEngine:   cron.New(),
		tickInterval: time.Minute,
		stop:         make(chan struct{}),
	}
}

// Load reads any persisted schedules and registers the cron ones with the
// cron engine. It does not start firing; call Start for that.
func (s *Scheduler) Load(ctx context.Context) error {
	var st state
	if err := s.store.Get(ctx, []string{"scheduler"}, &st); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range st.Schedules {
		sched := st.Schedules[i]
		s.schedules[sched.Name] = &sched
		if sched.Kind == types.ScheduleCron {
			if err := s.registerCronLocked(&sched); err != nil {
				logging.Warn().Err(err).Str("schedule", sched.Name).Msg("scheduler: dropping unparseable cron on load")
				delete(s.schedules, sched.Name)
			}
		}
	}
	return nil
}

// Start begins firing: the cron engine's own goroutine for cron triggers,
// and this scheduler's once-per-minute tick for one-shot triggers.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.cronEngine.Start()
	go s.oneShotLoop()
}

// Stop halts both firing paths. The cron engine's Stop waits for any
// in-flight job to return.
func (s *Scheduler) Stop() {
	close(s.stop)
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
}

// AddCron registers a new cron-triggered schedule. once marks it for
// removal after its first fire.
func (s *Scheduler) AddCron(name, session, message, cronExpr string, once bool) (types.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[name]; exists {
		return types.Schedule{}, ErrAlreadyExists
	}

	sched := &types.Schedule{
		Name: name, Kind: types.ScheduleCron, Session: session, Message: message,
		Cron: cronExpr, Once: once, CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.registerCronLocked(sched); err != nil {
		return types.Schedule{}, err
	}
	s.schedules[name] = sched

	if err := s.saveLocked(); err != nil {
		s.removeCronLocked(name)
		delete(s.schedules, name)
		return types.Schedule{}, err
	}
	return *sched, nil
}

// AddOneShot registers a schedule that fires exactly once at the given
// absolute epoch-ms time.
func (s *Scheduler) AddOneShot(name, session, message string, at int64) (types.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[name]; exists {
		return types.Schedule{}, ErrAlreadyExists
	}

	sched := &types.Schedule{
		Name: name, Kind: types.ScheduleOneShot, Session: session, Message: message,
		At: at, CreatedAt: time.Now().UnixMilli(),
	}
	s.schedules[name] = sched

	if err := s.saveLocked(); err != nil {
		delete(s.schedules, name)
		return types.Schedule{}, err
	}
	return *sched, nil
}

// Remove deletes a schedule by name, unregistering its cron entry if any.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[name]; !exists {
		return ErrNotFound
	}
	s.removeCronLocked(name)
	delete(s.schedules, name)
	return s.saveLocked()
}

// List returns a snapshot of every persisted schedule.
func (s *Scheduler) List() []types.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	return out
}

func (s *Scheduler) registerCronLocked(sched *types.Schedule) error {
	id, err := s.cronEngine.AddFunc(sched.Cron, func() { s.fireCron(sched.Name) })
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", sched.Cron, err)
	}
	s.cronIDs[sched.Name] = id
	return nil
}

func (s *Scheduler) removeCronLocked(name string) {
	if id, ok := s.cronIDs[name]; ok {
		s.cronEngine.Remove(id)
		delete(s.cronIDs, name)
	}
}

func (s *Scheduler) saveLocked() error {
	st := state{Schedules: make([]types.Schedule, 0, len(s.schedules))}
	for _, sched := range s.schedules {
		st.Schedules = append(st.Schedules, *sched)
	}
	return s.store.Put(context.Background(), []string{"scheduler"}, st)
}

// fireCron is the cron engine's callback for one registered entry. A
// once-marked schedule is removed after this fire.
func (s *Scheduler) fireCron(name string) {
	s.mu.Lock()
	sched, ok := s.schedules[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	fired := *sched
	if sched.Once {
		s.removeCronLocked(name)
		delete(s.schedules, name)
		if err := s.saveLocked(); err != nil {
			logging.Warn().Err(err).Str("schedule", name).Msg("scheduler: failed to persist after once-cron removal")
		}
	}
	s.mu.Unlock()

	s.fire(fired)
}

// oneShotLoop fires any one-shot whose time has passed, once per tick.
func (s *Scheduler) oneShotLoop() {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.checkOneShots()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) checkOneShots() {
	now := time.Now().UnixMilli()

	s.mu.Lock()
	var due []types.Schedule
	for name, sched := range s.schedules {
		if sched.Kind == types.ScheduleOneShot && sched.At <= now {
			due = append(due, *sched)
			delete(s.schedules, name)
		}
	}
	var saveErr error
	if len(due) > 0 {
		saveErr = s.saveLocked()
	}
	s.mu.Unlock()

	if saveErr != nil {
		logging.Warn().Err(saveErr).Msg("scheduler: failed to persist after one-shot removal")
	}
	for _, sched := range due {
		s.fire(sched)
	}
}

// fire publishes scheduler:fired and enqueues the injection at owner trust.
func (s *Scheduler) fire(sched types.Schedule) {
	event.Publish(event.Event{Type: event.SchedulerFired, Data: event.SchedulerFiredData{
		ScheduleID: sched.Name, Session: sched.Session,
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute+30*time.Second)
	defer cancel()

	_, err := s.queue.Inject(ctx, sched.Session, sched.Message, types.InjectOptions{
		From:   "scheduler",
		Source: types.InjectionSource{Type: types.SourceScheduler},
	})
	if err != nil {
		logging.Warn().Err(err).Str("schedule", sched.Name).Str("session", sched.Session).Msg("scheduler: injection failed")
	}
}
