package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultStatusInterval = 30 * time.Second

// StatusSource reports the current speaker status
type StatusSource func() Status

// StatusReporter periodically broadcasts a status snapshot to feed clients
type StatusReporter struct {
	hub      *Hub
	source   StatusSource
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewStatusReporter creates a reporter. A zero interval uses 30s.
func NewStatusReporter(hub *Hub, source StatusSource, interval time.Duration, logger *zap.Logger) *StatusReporter {
	if interval <= 0 {
		interval = defaultStatusInterval
	}
	return &StatusReporter{
		hub:      hub,
		source:   source,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background reporting loop
func (s *StatusReporter) Start() {
	go s.reportLoop()
	s.logger.Info("Status reporter started", zap.Duration("interval", s.interval))
}

// Stop stops the reporting loop. Safe to call more than once.
func (s *StatusReporter) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("Status reporter stopped")
	})
}

func (s *StatusReporter) reportLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.report()
		}
	}
}

func (s *StatusReporter) report() {
	if s.hub.ClientCount() == 0 {
		return
	}
	status := s.source()
	status.Clients = s.hub.ClientCount()
	s.hub.Broadcast(CreateStatusMessage(status))
}
