package dashboard

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Task is a running periodic job. Cancel stops future runs, lets a run in
// progress finish, and may be called any number of times.
type Task interface {
	Cancel()
}

// Scheduler starts periodic tasks. The first run happens one interval after
// Every returns.
type Scheduler interface {
	Every(name string, interval time.Duration, fn func()) (Task, error)
}

// CronScheduler runs every dashboard task as a gocron duration job.
type CronScheduler struct {
	scheduler gocron.Scheduler
}

func NewCronScheduler(options ...gocron.SchedulerOption) (*CronScheduler, error) {
	s, err := gocron.NewScheduler(options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gocron scheduler")
	}
	s.Start()
	return &CronScheduler{scheduler: s}, nil
}

func (c *CronScheduler) Every(name string, interval time.Duration, fn func()) (Task, error) {
	job, err := c.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		// A slow render delays the next tick instead of overlapping it.
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to schedule %v", name)
	}
	return &cronTask{scheduler: c.scheduler, id: job.ID(), name: name}, nil
}

func (c *CronScheduler) Shutdown() error {
	return c.scheduler.Shutdown()
}

type cronTask struct {
	scheduler gocron.Scheduler
	id        uuid.UUID
	name      string
	once      sync.Once
}

func (t *cronTask) Cancel() {
	t.once.Do(func() {
		err := t.scheduler.RemoveJob(t.id)
		if err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			slog.Warn("unable to remove scheduled job", "job", t.name, "error", err)
		}
	})
}
