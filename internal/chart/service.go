// ABOUTME: Patient chart service: visit upserts, history queries, clinic info
// ABOUTME: Also fronts backup export and idempotent restore for one account

package chart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sjoekim64/dxchart/internal/store"
)

// Store is the persistence surface the service needs.
type Store interface {
	store.ChartStore
	store.ClinicStore
	store.BackupStore
}

// Service implements chart and clinic operations on top of a Store.
type Service struct {
	store     Store
	opTimeout time.Duration
	logger    *slog.Logger
}

// NewService creates a chart service.
func NewService(st Store, opTimeout time.Duration) *Service {
	return &Service{
		store:     st,
		opTimeout: opTimeout,
		logger:    slog.Default().With("component", "chart"),
	}
}

// Save upserts a visit record. A record matching the same patient file and
// visit date is updated in place; anything else inserts a new row.
func (s *Service) Save(ctx context.Context, rec *store.ChartRecord) (*store.ChartRecord, error) {
	var saved *store.ChartRecord
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		saved, err = s.store.SaveChart(ctx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("chart saved", "user", saved.UserID, "fileNo", saved.FileNo, "date", saved.VisitDate, "id", saved.ID)
	return saved, nil
}

// SaveAsNew inserts a visit record unconditionally, bypassing the upsert
// match. Used when a duplicate visit entry is intentional.
func (s *Service) SaveAsNew(ctx context.Context, rec *store.ChartRecord) (*store.ChartRecord, error) {
	var saved *store.ChartRecord
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		saved, err = s.store.SaveChartAsNew(ctx, rec)
		return err
	})
	return saved, err
}

// Get returns a single chart by id, scoped to the owning account.
func (s *Service) Get(ctx context.Context, userID string, id int64) (*store.ChartRecord, error) {
	var rec *store.ChartRecord
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.store.GetChart(ctx, userID, id)
		return err
	})
	return rec, err
}

// ListByUser returns all of an account's charts, most recently updated first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*store.ChartRecord, error) {
	var recs []*store.ChartRecord
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		recs, err = s.store.ListChartsByUser(ctx, userID)
		return err
	})
	return recs, err
}

// ListByFileNo returns one patient's visit history in chronological order.
func (s *Service) ListByFileNo(ctx context.Context, userID, fileNo string) ([]*store.ChartRecord, error) {
	var recs []*store.ChartRecord
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		recs, err = s.store.ListChartsByFileNo(ctx, userID, fileNo)
		return err
	})
	return recs, err
}

// DeleteByID removes a single chart by id, scoped to the owning account.
func (s *Service) DeleteByID(ctx context.Context, userID string, id int64) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.store.DeleteChartByID(ctx, userID, id)
	})
}

// Delete removes a visit by patient file number. With a visit date it removes
// that exact visit; without one it removes the patient's oldest visit.
func (s *Service) Delete(ctx context.Context, userID, fileNo, visitDate string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.store.DeleteChart(ctx, userID, fileNo, visitDate)
	})
}

// GetClinicInfo returns the account's clinic profile, or nil when none has
// been saved yet.
func (s *Service) GetClinicInfo(ctx context.Context, userID string) (*store.ClinicProfile, error) {
	var profile *store.ClinicProfile
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		profile, err = s.store.GetClinicProfile(ctx, userID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return profile, err
}

// SaveClinicInfo merges the update into the account's clinic profile.
func (s *Service) SaveClinicInfo(ctx context.Context, userID string, update store.ClinicUpdate) (*store.ClinicProfile, error) {
	var profile *store.ClinicProfile
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		profile, err = s.store.SaveClinicProfile(ctx, userID, update)
		return err
	})
	return profile, err
}

// Export produces a portable backup of the account's charts and clinic
// profile.
func (s *Service) Export(ctx context.Context, userID string) (*store.BackupDocument, error) {
	var doc *store.BackupDocument
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.store.ExportUserData(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup exported", "user", userID, "charts", len(doc.Charts))
	return doc, nil
}

// Restore replays a backup into the account. Records are applied through the
// same upsert as live saves, so restoring twice does not duplicate visits.
func (s *Service) Restore(ctx context.Context, userID string, doc *store.BackupDocument) (int, error) {
	if doc == nil {
		return 0, store.ErrValidation
	}
	// The backup is restored into the authenticated account, whatever
	// account produced it.
	doc.UserID = userID

	var restored int
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		restored, err = s.store.RestoreUserData(ctx, doc)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("backup restored", "user", userID, "records", restored)
	return restored, nil
}

// do runs a store operation under the configured timeout. A deadline hit is
// reported as a storage timeout.
func (s *Service) do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return store.ErrStorageTimeout
	}
	return err
}
