package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mtarnawa/hanashi/internal/progression"
	"github.com/mtarnawa/hanashi/internal/store"
)

// Scheduler sends streak lapse reminders: accounts whose last activity was
// yesterday still have today to keep the streak alive.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(svc *Service, pushStore *store.PushStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		interval: time.Hour,
		now:      time.Now,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	now := s.now().UTC()
	today := progression.DateUTC(now)
	yesterday := progression.DateUTC(now.AddDate(0, 0, -1))

	targets, err := s.push.ListStreakReminderTargets(yesterday, today)
	if err != nil {
		s.logger.Error("list streak reminder targets", "error", err)
		return
	}

	for i := range targets {
		sub := &targets[i]
		err := s.service.Send(sub, Payload{
			Title: "Keep your streak going",
			Body:  "One session today keeps your streak alive.",
			URL:   "/practice",
			Tag:   "streak-reminder",
		})
		if errors.Is(err, ErrExpired) {
			if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("delete expired push subscription", "error", err)
			}
			continue
		}
		if err != nil {
			s.logger.Warn("send streak reminder", "account_id", sub.AccountID, "error", err)
			continue
		}
		if err := s.push.MarkReminded(sub.ID, today); err != nil {
			s.logger.Error("mark reminded", "subscription_id", sub.ID, "error", err)
		}
	}
}
