package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionGauge receives the number of open sessions
type SessionGauge interface {
	SetOpenSessions(n int)
}

// ServiceConfig holds session registry settings
type ServiceConfig struct {
	// IdleTTL is how long a session may stay untouched before it is swept
	IdleTTL time.Duration
}

// DefaultServiceConfig returns the default session registry settings
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{IdleTTL: 30 * time.Minute}
}

// Service keeps the open checkout sessions in memory
type Service struct {
	catalogSvc CatalogService
	orders     OrderService
	config     ServiceConfig
	logger     *zap.Logger
	gauge      SessionGauge
	orchOpts   []Option
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used by the service and its sessions
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSessionGauge reports the number of open sessions
func WithSessionGauge(g SessionGauge) ServiceOption {
	return func(s *Service) {
		s.gauge = g
	}
}

// WithOrchestratorOptions applies opts to every session's orchestrator
func WithOrchestratorOptions(opts ...Option) ServiceOption {
	return func(s *Service) {
		s.orchOpts = append(s.orchOpts, opts...)
	}
}

// WithServiceClock overrides time.Now
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a session registry
func NewService(catalogSvc CatalogService, orders OrderService, cfg ServiceConfig, opts ...ServiceOption) *Service {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultServiceConfig().IdleTTL
	}
	s := &Service{
		catalogSvc: catalogSvc,
		orders:     orders,
		config:     cfg,
		logger:     zap.NewNop(),
		now:        time.Now,
		sessions:   make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads a catalog snapshot and starts a new session with an empty cart
func (s *Service) Open(ctx context.Context) (*Session, error) {
	snapshot, err := LoadSnapshot(ctx, s.catalogSvc, s.now())
	if err != nil {
		s.logger.Warn("Failed to load catalog for new session", zap.Error(err))
		return nil, err
	}

	id := uuid.New()
	opts := append([]Option{WithLogger(s.logger.With(zap.String("session_id", id.String())))}, s.orchOpts...)
	session := newSession(id, snapshot, s.catalogSvc, NewOrchestrator(s.orders, opts...), s.logger, s.now)

	s.mu.Lock()
	s.sessions[id] = session
	n := len(s.sessions)
	s.mu.Unlock()

	s.reportOpen(n)
	s.logger.Info("Checkout session opened",
		zap.String("session_id", id.String()),
		zap.Int("products", snapshot.ProductCount()),
		zap.Int("clients", snapshot.ClientCount()),
	)
	return session, nil
}

// Get returns an open session
func (s *Service) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close discards a session. A session with a checkout in flight cannot be closed.
func (s *Service) Close(id uuid.UUID) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.Busy() {
		s.mu.Unlock()
		return ErrCheckoutInProgress
	}
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	s.reportOpen(n)
	s.logger.Info("Checkout session closed", zap.String("session_id", id.String()))
	return nil
}

// Len returns the number of open sessions
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepIdle closes sessions idle for longer than the configured TTL.
// Sessions with a checkout in flight are kept.
func (s *Service) SweepIdle(now time.Time) int {
	s.mu.Lock()
	swept := 0
	for id, session := range s.sessions {
		if session.Busy() {
			continue
		}
		if now.Sub(session.LastActivity()) > s.config.IdleTTL {
			delete(s.sessions, id)
			swept++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if swept > 0 {
		s.reportOpen(n)
		s.logger.Info("Swept idle checkout sessions",
			zap.Int("swept", swept),
			zap.Int("open", n),
		)
	}
	return swept
}

// RunSweeper calls SweepIdle every interval until ctx is done
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdle(s.now())
		}
	}
}

func (s *Service) reportOpen(n int) {
	if s.gauge != nil {
		s.gauge.SetOpenSessions(n)
	}
}
