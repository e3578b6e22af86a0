package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/infrastructure/valkey"
	"github.com/reelforge/reelforge/pipeline"
	"github.com/reelforge/reelforge/pkg/timeutils"
	"github.com/reelforge/reelforge/repository"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	promoteHorizon  = 24 * time.Hour
	safetyInterval  = 5 * time.Minute
	execLockTTL     = 30 * time.Second
	promoteLockTTL  = 55 * time.Second
	expiryBatchSize = 50
)

// Sweeper walks planned jobs and starts generation once their trigger
// instant (scheduled post time minus the lead) has passed. It also purges
// artifacts whose retention window expired. With Valkey configured, due
// triggers are promoted into a sorted set so multiple instances cooperate
// through locks; without it the sweep scans the database directly.
type Sweeper struct {
	repo         repository.IVideoRepository
	engine       *pipeline.Engine
	vk           *valkey.Client
	lead         time.Duration
	interval     time.Duration
	artifactsDir string
	wakeCh       chan struct{}
}

func NewSweeper(repo repository.IVideoRepository, engine *pipeline.Engine, vk *valkey.Client, lead, interval time.Duration, artifactsDir string) *Sweeper {
	return &Sweeper{
		repo:         repo,
		engine:       engine,
		vk:           vk,
		lead:         lead,
		interval:     interval,
		artifactsDir: artifactsDir,
		wakeCh:       make(chan struct{}, 1),
	}
}

// StartLoop launches the background worker. With Valkey it also listens on
// a wake-up channel so a freshly planned near-term job shortens the wait.
func (s *Sweeper) StartLoop(ctx context.Context) {
	if s.vk != nil {
		wake := s.vk.Key("sweep:signal")
		go func() {
			err := s.vk.Inner().Receive(ctx, s.vk.Inner().B().Subscribe().Channel(wake).Build(), func(msg valkeylib.PubSubMessage) {
				logrus.Debug("[SWEEP] Wake-up signal received")
				s.nudge()
			})
			if err != nil && ctx.Err() == nil {
				logrus.WithError(err).Error("[SWEEP] Pub/Sub listener failed")
			}
		}()
		logrus.Infof("[SWEEP] Worker started with Valkey queue, lead time %s", s.lead)
	} else {
		logrus.Infof("[SWEEP] Worker started in direct-scan mode, interval %s", s.interval)
	}

	go s.runWorker(ctx)
}

func (s *Sweeper) runWorker(ctx context.Context) {
	if err := s.promote(ctx); err != nil {
		logrus.WithError(err).Error("[SWEEP] Initial trigger promotion failed")
	}

	safetyTicker := time.NewTicker(safetyInterval)
	defer safetyTicker.Stop()

	for {
		nextAt := s.execDue(ctx)
		s.purgeExpired(ctx)

		sleep := s.interval
		if !nextAt.IsZero() {
			sleep = time.Until(nextAt)
			if sleep < 0 {
				sleep = time.Second
			}
			if sleep > s.interval {
				sleep = s.interval
			}
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-safetyTicker.C:
			timer.Stop()
			if err := s.promote(ctx); err != nil {
				logrus.WithError(err).Warn("[SWEEP] Trigger promotion failed")
			}
		case <-s.wakeCh:
			// A near-term planning change happened; re-promote right away
			// instead of waiting out the sleep.
			timer.Stop()
			if err := s.promote(ctx); err != nil {
				logrus.WithError(err).Warn("[SWEEP] Trigger promotion failed")
			}
		case <-timer.C:
		}
	}
}

// nudge interrupts the worker's sleep without blocking the caller. A
// pending nudge coalesces with later ones.
func (s *Sweeper) nudge() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// promote looks ahead in the database and loads upcoming triggers into the
// Valkey sorted set, keyed by their trigger instant. No-op without Valkey.
func (s *Sweeper) promote(ctx context.Context) error {
	if s.vk == nil {
		return nil
	}
	if !s.vk.AcquireLock(ctx, "lock:sweep:promote", promoteLockTTL) {
		return nil
	}

	horizon := time.Now().UTC().Add(promoteHorizon + s.lead)
	due, err := s.repo.ListDue(ctx, horizon, 0)
	if err != nil {
		return err
	}

	key := s.vk.Key("sweep:triggers")
	for _, v := range due {
		if v.ScheduledPostTime == nil {
			continue
		}
		score := float64(timeutils.TriggerAt(*v.ScheduledPostTime, s.lead).Unix())
		_ = s.vk.Inner().Do(ctx, s.vk.Inner().B().Zadd().Key(key).ScoreMember().ScoreMember(score, v.ID).Build())
	}
	return nil
}

// execDue fires matured triggers and returns the instant of the next one,
// so the worker can sleep exactly until then.
func (s *Sweeper) execDue(ctx context.Context) time.Time {
	if s.vk == nil {
		s.execDirect(ctx)
		return time.Time{}
	}

	key := s.vk.Key("sweep:triggers")
	now := float64(time.Now().Unix())

	res := s.vk.Inner().Do(ctx, s.vk.Inner().B().Zrangebyscore().Key(key).Min("-inf").Max(fmt.Sprintf("%f", now)).Build())
	ids, err := res.AsStrSlice()
	if err == nil {
		for _, id := range ids {
			if !s.vk.AcquireLock(ctx, "lock:sweep:exec:"+id, execLockTTL) {
				continue
			}
			s.trigger(ctx, id)
			_ = s.vk.Inner().Do(ctx, s.vk.Inner().B().Zrem().Key(key).Member(id).Build())
		}
	}

	peek := s.vk.Inner().B().Zrangebyscore().Key(key).Min("-inf").Max("+inf").Limit(0, 1).Build()
	next, _ := s.vk.Inner().Do(ctx, peek).AsStrSlice()
	if len(next) > 0 && next[0] != "" {
		score, err := s.vk.Inner().Do(ctx, s.vk.Inner().B().Zscore().Key(key).Member(next[0]).Build()).AsFloat64()
		if err == nil {
			return time.Unix(int64(score), 0)
		}
	}
	return time.Time{}
}

// execDirect is the single-instance path: scan for planned jobs whose
// trigger instant has passed and start them.
func (s *Sweeper) execDirect(ctx context.Context) {
	now := time.Now().UTC()
	due, err := s.repo.ListDue(ctx, now.Add(s.lead), 0)
	if err != nil {
		logrus.WithError(err).Error("[SWEEP] Due scan failed")
		return
	}
	for _, v := range due {
		if v.ScheduledPostTime == nil || timeutils.TriggerAt(*v.ScheduledPostTime, s.lead).After(now) {
			continue
		}
		s.trigger(ctx, v.ID)
	}
}

// trigger arms one planned job and hands it to the pipeline. The guarded
// planned → generating transition makes the trigger idempotent against a
// concurrent manual generate-now.
func (s *Sweeper) trigger(ctx context.Context, id string) {
	now := time.Now().UTC()
	armed, err := s.repo.MarkGenerating(ctx, id, false, now)
	if err != nil {
		logrus.WithError(err).Errorf("[SWEEP] Failed to arm job %s", id)
		return
	}
	if !armed {
		logrus.Debugf("[SWEEP] Job %s already left the planned state, skipping", id)
		return
	}

	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logrus.WithError(err).Errorf("[SWEEP] Failed to load armed job %s", id)
		return
	}

	logrus.Infof("[SWEEP] Triggering generation for job %s (posts at %s)", id, v.ScheduledPostTime.Format(time.RFC3339))
	if err := s.engine.StartPipeline(ctx, v, pipeline.StartOptions{}); err != nil {
		logrus.WithError(err).Errorf("[SWEEP] Failed to start pipeline for job %s", id)
	}
}

// purgeExpired removes artifacts whose retention window passed. The job
// record stays; only the files and their URLs go.
func (s *Sweeper) purgeExpired(ctx context.Context) {
	expired, err := s.repo.ListExpired(ctx, time.Now().UTC(), expiryBatchSize)
	if err != nil {
		logrus.WithError(err).Warn("[SWEEP] Expired artifact scan failed")
		return
	}

	for _, v := range expired {
		dir := filepath.Join(s.artifactsDir, v.ID)
		if err := os.RemoveAll(dir); err != nil {
			logrus.WithError(err).Warnf("[SWEEP] Failed to remove artifacts for job %s", v.ID)
			continue
		}
		v.VideoURL = ""
		v.ThumbnailURL = ""
		v.Artifacts = job.Artifacts{}
		v.ExpiresAt = nil
		if err := s.repo.Update(ctx, v); err != nil {
			logrus.WithError(err).Warnf("[SWEEP] Failed to persist artifact purge for job %s", v.ID)
			continue
		}
		logrus.Infof("[SWEEP] Purged expired artifacts for job %s", v.ID)
	}
}

// Wake signals the worker after near-term planning changes. With Valkey
// the signal fans out to every instance through pub/sub; the local
// subscription loops it back to this one.
func (s *Sweeper) Wake(ctx context.Context) {
	if s.vk == nil {
		s.nudge()
		return
	}
	if err := s.vk.Publish(ctx, "sweep:signal", "1"); err != nil {
		logrus.WithError(err).Debug("[SWEEP] Wake publish failed")
	}
}
