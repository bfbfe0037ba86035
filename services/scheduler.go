package services

import (
	"context"
	"time"

	"study-quest/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// StreakDecayer is the part of the streak tracker the scheduler drives.
type StreakDecayer interface {
	DecayStreaks(ctx context.Context) (int, error)
}

// StartStreakDecayScheduler runs DecayStreaks every interval until the
// returned scheduler is shut down.
func StartStreakDecayScheduler(d StreakDecayer, interval time.Duration, clock clockwork.Clock) (gocron.Scheduler, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()

			n, err := d.DecayStreaks(ctx)
			if err != nil {
				logger.L().Errorf("[Scheduler] streak decay failed after %d reset(s): %v", n, err)
				return
			}
			logger.L().Debugf("[Scheduler] streak decay done, %d reset(s)", n)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
