// Package services hosts the sync orchestrator: the façade that tracks
// unsent records, picks a transport, and keeps the published sync state and
// persisted checkpoint consistent across attempts.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/wearsync/internal/agent/identity"
	"github.com/dmitrijs2005/wearsync/internal/agent/models"
	"github.com/dmitrijs2005/wearsync/internal/agent/repositories/records"
	"github.com/dmitrijs2005/wearsync/internal/agent/transport/fallback"
	"github.com/dmitrijs2005/wearsync/internal/agent/transport/primary"
	"github.com/dmitrijs2005/wearsync/internal/common"
	"github.com/dmitrijs2005/wearsync/internal/logging"
)

const (
	// DefaultPollInterval is how often the background loop probes the
	// primary endpoint.
	DefaultPollInterval = 30 * time.Second

	// DefaultFallbackTimeout bounds one whole fallback attempt: waiting for
	// a peer to attach, run the handshake and complete the transfer.
	DefaultFallbackTimeout = 60 * time.Second
)

// PrimaryDriver is the network transport consumed by the orchestrator.
// *primary.Driver satisfies it.
type PrimaryDriver interface {
	Probe(ctx context.Context) bool
	Submit(ctx context.Context, batch []models.Record, deviceID string, lastSync int64) primary.Outcome
	SetEndpoint(url string)
	Endpoint() string
}

// FallbackDriver is the point-to-point transport consumed by the
// orchestrator. *fallback.Driver satisfies it.
type FallbackDriver interface {
	StartAdvertising() error
	StopAdvertising()
	Enqueue(recs []models.Record)
	WaitUntil(ctx context.Context, pred func(fallback.ConnectionState, fallback.TransferState) bool) error
}

// Stats is the on-demand status snapshot returned by SyncService.Stats.
type Stats struct {
	PendingCount      int    `json:"pendingCount"`
	LastSyncTimestamp int64  `json:"lastSyncTimestamp"`
	DeviceID          string `json:"deviceId"`
	Endpoint          string `json:"endpoint"`
	PrimaryAvailable  bool   `json:"primaryAvailable"`
}

// Options tune the orchestrator. Zero values select defaults.
type Options struct {
	PollInterval    time.Duration
	FallbackTimeout time.Duration
}

// SyncService owns one record store, one device identity and one driver
// pair. It is the only writer of the synced flag and of the last-sync
// checkpoint.
type SyncService struct {
	store         records.Repository
	settingsStore identity.Store
	primary       PrimaryDriver
	fallback      FallbackDriver
	log           logging.Logger

	pollInterval    time.Duration
	fallbackTimeout time.Duration

	// syncMu serializes whole sync attempts.
	syncMu sync.Mutex

	// mu guards settings, published state and availability.
	mu               sync.Mutex
	settings         identity.Settings
	state            models.SyncState
	primaryAvailable bool

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewSyncService loads (or creates) the device identity, publishes the
// initial sync state and starts the background availability poller.
// Call Shutdown when done.
func NewSyncService(
	store records.Repository,
	settingsStore identity.Store,
	primaryDriver PrimaryDriver,
	fallbackDriver FallbackDriver,
	opts Options,
	log logging.Logger,
) (*SyncService, error) {
	settings, err := identity.Ensure(settingsStore)
	if err != nil {
		return nil, fmt.Errorf("failed to establish device identity: %w", err)
	}

	if settings.Endpoint != "" {
		primaryDriver.SetEndpoint(settings.Endpoint)
	} else {
		settings.Endpoint = primaryDriver.Endpoint()
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = DefaultFallbackTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &SyncService{
		store:           store,
		settingsStore:   settingsStore,
		primary:         primaryDriver,
		fallback:        fallbackDriver,
		log:             log,
		pollInterval:    opts.PollInterval,
		fallbackTimeout: opts.FallbackTimeout,
		settings:        settings,
		state: models.SyncState{
			LastSyncTimestamp: settings.LastSyncTimestamp,
			LastMethod:        models.MethodNone,
		},
		ctx:    ctx,
		cancel: cancel,
	}

	s.republish(ctx)

	s.wg.Add(1)
	go s.pollAvailability()

	return s, nil
}

// AddRecords ingests records into the store and republishes the pending
// count. Storage I/O errors are returned to the caller: losing ingested
// data silently is unacceptable.
func (s *SyncService) AddRecords(ctx context.Context, recs []models.Record) error {
	if err := s.store.Ingest(ctx, recs); err != nil {
		return fmt.Errorf("failed to ingest records: %w", err)
	}
	s.republish(ctx)
	return nil
}

// Sync runs one synchronization attempt: primary first, fallback only after
// primary definitively fails. The batch is marked synced atomically as a
// whole per attempt; on failure the store is left untouched and eligible
// for the next retry. Transport errors never propagate: they end up in the
// published state's LastError.
//
// Sync may block for up to the sum of the primary and fallback timeouts and
// observes cancellation of both the caller's context and Shutdown.
func (s *SyncService) Sync(ctx context.Context) bool {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if s.ctx.Err() != nil {
		s.publishFailure(ctx, common.ErrShuttingDown)
		return false
	}

	// cooperative cancellation: shutdown aborts an in-flight sync
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	batch, err := s.store.Unsynced(ctx)
	if err != nil {
		s.publishFailure(ctx, fmt.Errorf("failed to read pending records: %w", err))
		return false
	}

	if len(batch) == 0 {
		s.log.Debug(ctx, "nothing to sync")
		s.publishTrivialSuccess(ctx)
		return true
	}

	ids := make([]string, len(batch))
	for i, rec := range batch {
		ids[i] = rec.ID
	}

	s.mu.Lock()
	deviceID := s.settings.DeviceID
	lastSync := s.settings.LastSyncTimestamp
	s.mu.Unlock()

	s.log.Info(ctx, "sync started", "pending", len(batch))

	out := s.primary.Submit(ctx, batch, deviceID, lastSync)
	switch out.Kind {
	case primary.OutcomeAccepted:
		if err := s.finish(ctx, ids, models.MethodPrimary); err != nil {
			s.publishFailure(ctx, err)
			return false
		}
		s.log.Info(ctx, "sync completed", "method", models.MethodPrimary, "records", out.SyncedCount)
		return true

	case primary.OutcomeRejected:
		s.log.Warn(ctx, "primary endpoint rejected batch", "message", out.Message)
	default:
		s.log.Warn(ctx, "primary endpoint unreachable", "error", out.Cause)
	}

	if err := s.syncViaFallback(ctx, batch); err != nil {
		s.publishFailure(ctx, fmt.Errorf("primary failed: %w; fallback failed: %w", out.Err(), err))
		return false
	}

	if err := s.finish(ctx, ids, models.MethodFallback); err != nil {
		s.publishFailure(ctx, err)
		return false
	}
	s.log.Info(ctx, "sync completed", "method", models.MethodFallback, "records", len(ids))
	return true
}

// syncViaFallback advertises, enqueues the batch and waits for a peer to
// drain it. Advertising is always stopped afterward regardless of outcome.
func (s *SyncService) syncViaFallback(ctx context.Context, batch []models.Record) error {
	if err := s.fallback.StartAdvertising(); err != nil {
		return err
	}
	defer s.fallback.StopAdvertising()

	s.fallback.Enqueue(batch)

	ctx, cancel := context.WithTimeout(ctx, s.fallbackTimeout)
	defer cancel()

	err := s.fallback.WaitUntil(ctx, func(conn fallback.ConnectionState, tr fallback.TransferState) bool {
		return conn == fallback.Connected && tr == fallback.Completed
	})
	if err != nil {
		return fmt.Errorf("transfer did not complete: %w", err)
	}
	return nil
}

// finish marks the batch synced, advances the checkpoint and republishes.
func (s *SyncService) finish(ctx context.Context, ids []string, method models.SyncMethod) error {
	if err := s.store.MarkSynced(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark records synced: %w", err)
	}

	now := time.Now().UnixMilli()

	s.mu.Lock()
	if now > s.settings.LastSyncTimestamp {
		s.settings.LastSyncTimestamp = now
	}
	s.state.LastSyncTimestamp = s.settings.LastSyncTimestamp
	s.state.LastMethod = method
	s.state.LastSuccess = true
	s.state.LastError = ""
	settings := s.settings
	s.mu.Unlock()

	if err := s.settingsStore.Save(settings); err != nil {
		// the sync itself succeeded; a stale checkpoint only widens the next batch
		s.log.Warn(ctx, "failed to persist sync checkpoint", "error", err)
	}

	s.republish(ctx)
	return nil
}

func (s *SyncService) publishTrivialSuccess(ctx context.Context) {
	s.mu.Lock()
	s.state.LastSuccess = true
	s.state.LastError = ""
	s.mu.Unlock()
	s.republish(ctx)
}

func (s *SyncService) publishFailure(ctx context.Context, cause error) {
	s.log.Error(ctx, "sync failed", "error", cause)

	s.mu.Lock()
	s.state.LastSuccess = false
	s.state.LastMethod = models.MethodNone
	s.state.LastError = cause.Error()
	s.mu.Unlock()
	s.republish(ctx)
}

// republish recomputes the pending count and refreshes the snapshot.
func (s *SyncService) republish(ctx context.Context) {
	n, err := s.store.CountPending(ctx)
	if err != nil {
		s.log.Warn(ctx, "failed to count pending records", "error", err)
		return
	}
	s.mu.Lock()
	s.state.PendingCount = n
	s.mu.Unlock()
}

// State returns the published sync state snapshot.
func (s *SyncService) State() models.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetEndpoint reconfigures the primary driver and persists the new URL. It
// does not retroactively affect an in-flight Sync call.
func (s *SyncService) SetEndpoint(url string) {
	s.primary.SetEndpoint(url)

	s.mu.Lock()
	s.settings.Endpoint = url
	settings := s.settings
	s.mu.Unlock()

	if err := s.settingsStore.Save(settings); err != nil {
		s.log.Warn(s.ctx, "failed to persist endpoint", "error", err)
	}
}

// Stats returns an on-demand snapshot. It must return promptly: the pending
// count comes from the last published state, not a fresh store query.
func (s *SyncService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		PendingCount:      s.state.PendingCount,
		LastSyncTimestamp: s.settings.LastSyncTimestamp,
		DeviceID:          s.settings.DeviceID,
		Endpoint:          s.settings.Endpoint,
		PrimaryAvailable:  s.primaryAvailable,
	}
}

// Shutdown cancels the poller and any in-flight waits, then stops
// advertising. Safe to call multiple times.
func (s *SyncService) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.fallback.StopAdvertising()
	})
}

func (s *SyncService) pollAvailability() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			available := s.primary.Probe(s.ctx)

			s.mu.Lock()
			changed := available != s.primaryAvailable
			s.primaryAvailable = available
			s.mu.Unlock()

			if changed {
				s.log.Info(s.ctx, "primary availability changed", "available", available)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

