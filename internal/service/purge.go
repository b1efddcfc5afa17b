package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// purgeTask is one pending cleanup: the artifact handles to remove and
// when to remove them
type purgeTask struct {
	handles []repo.ArtifactHandle
	dueAt   time.Time
}

// PurgeScheduler removes delivered whisper artifacts after a grace window.
// Purging is best-effort cleanup: failures are swallowed and pending tasks
// are lost on restart by design.
type PurgeScheduler struct {
	transport repo.TransportRepo

	mu    sync.Mutex
	queue []purgeTask

	pollInterval time.Duration
	running      bool
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewPurgeScheduler creates a purge scheduler
func NewPurgeScheduler(transport repo.TransportRepo) *PurgeScheduler {
	return &PurgeScheduler{
		transport:    transport,
		pollInterval: time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start starts the scheduler loop
func (s *PurgeScheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.loop()
	fmt.Printf("[Purge] Started with poll interval %v\n", s.pollInterval)
}

// Stop stops the scheduler. Pending tasks are discarded.
func (s *PurgeScheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
	fmt.Println("[Purge] Stopped")
}

// Schedule queues artifact handles for deletion after delay.
// Fire-and-forget: the caller is never told whether deletion worked.
func (s *PurgeScheduler) Schedule(handles []repo.ArtifactHandle, delay time.Duration) {
	if len(handles) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, purgeTask{handles: handles, dueAt: time.Now().Add(delay)})
	s.mu.Unlock()
}

// Pending returns the number of queued tasks
func (s *PurgeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *PurgeScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runDue(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

func (s *PurgeScheduler) runDue(now time.Time) {
	s.mu.Lock()
	var due []purgeTask
	var keep []purgeTask
	for _, task := range s.queue {
		if task.dueAt.After(now) {
			keep = append(keep, task)
		} else {
			due = append(due, task)
		}
	}
	s.queue = keep
	s.mu.Unlock()

	for _, task := range due {
		for _, handle := range task.handles {
			// Already-deleted or transport errors are irrelevant here
			_ = s.transport.Delete(context.Background(), handle)
		}
	}
	if len(due) > 0 {
		fmt.Printf("[Purge] Removed artifacts for %d reveals\n", len(due))
	}
}
