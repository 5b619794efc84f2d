// Package server provides application lifecycle management: ordered startup,
// signal handling and ordered shutdown of context-driven services.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Run blocks until ctx is cancelled or
// the service fails; a nil return after cancellation is a clean stop.
type Service interface {
	Run(ctx context.Context) error
}

// RunFunc adapts a plain function to Service.
type RunFunc func(ctx context.Context) error

// Run calls f.
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// DefaultStopTimeout bounds how long shutdown waits for each service.
const DefaultStopTimeout = 10 * time.Second

// Lifecycle starts services in order and stops them in reverse order. The
// first service failure stops everything and is returned from Run.
type Lifecycle struct {
	logger      *zap.Logger
	stopTimeout time.Duration
	signals     []os.Signal
	services    []*running
	mu          sync.Mutex
}

type running struct {
	name    string
	service Service
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewLifecycle creates a new Lifecycle manager that shuts down on SIGINT or SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger:      logger,
		stopTimeout: DefaultStopTimeout,
		signals:     []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// SetStopTimeout overrides DefaultStopTimeout.
//
// Precondition: d > 0.
func (l *Lifecycle) SetStopTimeout(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimeout = d
}

// Add registers a named service. Services are started in the order they are added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, &running{name: name, service: svc})
}

// Run starts all services and blocks until a termination signal, the
// cancellation of ctx, or the failure of any service.
//
// Postcondition: All services have been stopped. Returns the first service
// error, or nil on a signal or cancellation.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	l.mu.Lock()
	services := l.services
	l.mu.Unlock()

	errCh := make(chan error, len(services))
	// Service contexts outlive ctx so shutdown can stop them one by one.
	base := context.WithoutCancel(ctx)
	for _, rs := range services {
		svcCtx, cancel := context.WithCancel(base)
		rs.cancel = cancel
		rs.done = make(chan struct{})
		l.logger.Info("starting service", zap.String("service", rs.name))
		go func(rs *running) {
			defer close(rs.done)
			svcStart := time.Now()
			err := rs.service.Run(svcCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Error("service failed",
					zap.String("service", rs.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				errCh <- fmt.Errorf("service %s: %w", rs.name, err)
			}
		}(rs)
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, l.signals...)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		l.logger.Error("service error, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.shutdown(services)

	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return runErr
}

func (l *Lifecycle) shutdown(services []*running) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		rs := services[i]
		svcStart := time.Now()
		l.logger.Info("stopping service", zap.String("service", rs.name))
		rs.cancel()
		select {
		case <-rs.done:
			l.logger.Info("service stopped",
				zap.String("service", rs.name),
				zap.Duration("elapsed", time.Since(svcStart)),
			)
		case <-time.After(l.stopTimeout):
			l.logger.Warn("service did not stop in time",
				zap.String("service", rs.name),
				zap.Duration("timeout", l.stopTimeout),
			)
		}
	}
	l.logger.Info("all services stopped", zap.Duration("shutdown_elapsed", time.Since(shutdownStart)))
}
