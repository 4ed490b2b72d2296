package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Manager runs several servers and stops all of them when one fails or the
// context is cancelled.
type Manager struct {
	shutdownTimeout time.Duration

	mu      sync.Mutex
	servers []Runnable
	started bool
}

// NewManager creates a new server manager.
func NewManager(shutdownTimeout time.Duration) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Manager{shutdownTimeout: shutdownTimeout}
}

// Add registers servers. It must be called before Run.
func (m *Manager) Add(servers ...Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, servers...)
}

// Run starts every server and blocks until ctx is done or a server fails,
// then stops the rest.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	if len(m.servers) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("no servers configured")
	}
	m.started = true
	servers := append([]Runnable(nil), m.servers...)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			logger.Infow("Server starting", "name", s.Name())
			if err := s.Start(gctx); err != nil {
				return fmt.Errorf("%s server: %w", s.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
		defer cancel()

		var errs []error
		for i := len(servers) - 1; i >= 0; i-- {
			if err := servers[i].Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop %s server: %w", servers[i].Name(), err))
				continue
			}
			logger.Infow("Server stopped", "name", servers[i].Name())
		}
		return utilerrors.NewAggregate(errs)
	})

	return g.Wait()
}
