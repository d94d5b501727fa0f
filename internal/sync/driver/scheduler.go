package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sitesync/internal/core/apperror"
	"sitesync/internal/sync/status"
	"sitesync/pkg/logger"
)

// Scheduler runs cycles for several sites, each on its own timer. Explicit
// triggers that arrive while a cycle is running are coalesced into a single
// follow-up cycle.
type Scheduler struct {
	interval time.Duration
	sites    map[string]*siteLoop
	log      *logger.Logger
}

type siteLoop struct {
	driver  *Driver
	trigger chan struct{}

	mu   sync.RWMutex
	last *status.RunStatus
	runs int
}

// NewScheduler creates a scheduler over drivers.
func NewScheduler(interval time.Duration, log *logger.Logger, drivers ...*Driver) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	s := &Scheduler{
		interval: interval,
		sites:    make(map[string]*siteLoop, len(drivers)),
		log:      log.WithComponent("scheduler"),
	}
	for _, d := range drivers {
		s.sites[d.SiteID()] = &siteLoop{
			driver:  d,
			trigger: make(chan struct{}, 1),
		}
	}
	return s
}

// Sites returns the scheduled site ids in order.
func (s *Scheduler) Sites() []string {
	ids := make([]string, 0, len(s.sites))
	for id := range s.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Trigger requests a cycle for siteID, or for every site when siteID is
// empty. It never blocks.
func (s *Scheduler) Trigger(siteID string) error {
	if siteID == "" {
		for _, l := range s.sites {
			l.poke()
		}
		return nil
	}
	l, ok := s.sites[siteID]
	if !ok {
		return apperror.NewNotFound("site", siteID)
	}
	l.poke()
	return nil
}

func (l *siteLoop) poke() {
	select {
	case l.trigger <- struct{}{}:
	default:
		// a cycle is already pending
	}
}

// Run starts a loop per site and blocks until ctx is canceled and every
// active cycle has finished its current phase.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range s.Sites() {
		l := s.sites[id]
		g.Go(func() error {
			s.loop(ctx, l)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, l *siteLoop) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx, l)
	for {
		select {
		case <-ctx.Done():
			s.log.ForSite(l.driver.SiteID()).Infow("site loop stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, l)
		case <-l.trigger:
			s.runOnce(ctx, l)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, l *siteLoop) {
	if ctx.Err() != nil {
		return
	}
	run, err := l.driver.RunCycle(ctx)
	if err != nil && !IsCanceled(err) {
		s.log.ForSite(l.driver.SiteID()).Warnw("sync cycle ended with error", "error", err)
	}

	l.mu.Lock()
	l.last = run
	l.runs++
	l.mu.Unlock()
}

// LastStatus returns the status of the last finished cycle of siteID.
func (s *Scheduler) LastStatus(siteID string) (*status.RunStatus, bool) {
	l, ok := s.sites[siteID]
	if !ok {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last.Clone(), l.last != nil
}

// Runs returns how many cycles ran for siteID.
func (s *Scheduler) Runs(siteID string) int {
	l, ok := s.sites[siteID]
	if !ok {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.runs
}

// Statuses returns the persisted status of every site, falling back to the
// in-memory status when the store has none.
func (s *Scheduler) Statuses(ctx context.Context) ([]*status.RunStatus, error) {
	out := make([]*status.RunStatus, 0, len(s.sites))
	for _, id := range s.Sites() {
		l := s.sites[id]
		st, err := l.driver.LatestStatus(ctx)
		if err != nil {
			if !apperror.IsNotFound(err) {
				return nil, err
			}
			if last, ok := s.LastStatus(id); ok {
				st = last
			} else {
				continue
			}
		}
		out = append(out, st)
	}
	return out, nil
}
