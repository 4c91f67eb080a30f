// Package workers contains the supervised background tasks of the relay.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/errors"
)

// Supervisor runs each worker in its own goroutine, recovers panics and
// restarts crashed workers after a delay. Stopping the parent context
// stops every worker; a failure in one worker never takes down another.
type Supervisor struct {
	Cancel          context.CancelFunc
	log             *slog.Logger
	restartInterval time.Duration
	workers         []contract.Worker
	wg              sync.WaitGroup
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run starts every added worker and blocks until all of them finish.
// Children share a context derived from ctx so Stop cancels only them.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start launches one worker under supervision.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker)
	}()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	name := contract.GetWorkerName(worker)
	restarts := 0

	for ctx.Err() == nil {
		err := runShielded(ctx, worker)
		switch {
		case err == nil:
			// A clean return means the worker is done for good.
			s.log.Info("Worker finished", "name", name)
			return
		case ctx.Err() != nil:
			s.log.Info("Worker stopped", "name", name)
			return
		}

		restarts++
		s.log.Warn("Worker crashed, restarting",
			"name", name, "error", err, "restarts", restarts)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.restartInterval):
		}
	}
	s.log.Info("Stopping worker", "name", name)
}

// runShielded converts a worker panic into an error so the supervision
// loop survives it.
func runShielded(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels the supervised workers; Run keeps waiting for them.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
