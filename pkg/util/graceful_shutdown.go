package util

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GracefulShutdown runs registered shutdown hooks in priority order when
// the process is asked to stop.
type GracefulShutdown struct {
	resources []ShutdownResource
	mu        sync.Mutex
	logger    *logrus.Logger
	timeout   time.Duration
}

// ShutdownResource is one closeable resource. Lower priorities shut down
// first.
type ShutdownResource struct {
	Name     string
	Shutdown func(context.Context) error
	Priority int
}

// NewGracefulShutdown creates a shutdown manager with an overall timeout.
func NewGracefulShutdown(logger *logrus.Logger, timeout time.Duration) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GracefulShutdown{
		resources: make([]ShutdownResource, 0),
		logger:    logger,
		timeout:   timeout,
	}
}

// Register adds a resource, keeping the list sorted by priority.
func (gs *GracefulShutdown) Register(resource ShutdownResource) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	inserted := false
	for i, r := range gs.resources {
		if resource.Priority < r.Priority {
			gs.resources = append(gs.resources[:i], append([]ShutdownResource{resource}, gs.resources[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		gs.resources = append(gs.resources, resource)
	}

	gs.logger.WithFields(logrus.Fields{
		"resource": resource.Name,
		"priority": resource.Priority,
	}).Debug("Registered resource for graceful shutdown")
}

// RegisterCloser registers an io.Closer for shutdown
func (gs *GracefulShutdown) RegisterCloser(name string, closer io.Closer, priority int) {
	gs.Register(ShutdownResource{
		Name:     name,
		Priority: priority,
		Shutdown: func(ctx context.Context) error {
			return closer.Close()
		},
	})
}

// Shutdown closes every registered resource in priority order, bounded by
// the manager's timeout. All failures are collected; a panic in one hook
// does not stop the rest.
func (gs *GracefulShutdown) Shutdown(ctx context.Context) error {
	gs.mu.Lock()
	resources := make([]ShutdownResource, len(gs.resources))
	copy(resources, gs.resources)
	gs.mu.Unlock()

	gs.logger.WithField("resource_count", len(resources)).Info("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()

	var failures []error
	for _, resource := range resources {
		if err := gs.shutdownOne(shutdownCtx, resource); err != nil {
			gs.logger.WithError(err).WithField("resource", resource.Name).Error("Error shutting down resource")
			failures = append(failures, err)
		} else {
			gs.logger.WithField("resource", resource.Name).Debug("Resource shut down")
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("shutdown completed with %d failures: %v", len(failures), failures)
	}
	gs.logger.Info("Graceful shutdown completed successfully")
	return nil
}

func (gs *GracefulShutdown) shutdownOne(ctx context.Context, resource ShutdownResource) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during shutdown of %s: %v", resource.Name, r)
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- resource.Shutdown(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("shutdown error for %s: %w", resource.Name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout for %s", resource.Name)
	}
}
