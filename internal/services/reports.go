package services

import (
	"context"
	"errors"
	"fmt"
	"nearby-guide/internal/repository"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidReport  = errors.New("invalid report")
)

// Report kinds a user can file against a place.
const (
	ReportWrongLocation = "WRONG_LOCATION"
	ReportClosed        = "CLOSED"
	ReportOther         = "OTHER"
)

var (
	reportKinds    = []string{ReportWrongLocation, ReportClosed, ReportOther}
	reportStatuses = []string{"OPEN", "IN_PROGRESS", "RESOLVED", "CLOSED"}
)

// PlaceReport is a user report that a listed place is wrong.
type PlaceReport struct {
	bun.BaseModel `bun:"table:place_reports,alias:pr"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	PlaceID   string    `bun:"place_id,notnull" json:"place_id"`
	PlaceName string    `bun:"place_name" json:"place_name"`
	Kind      string    `bun:"kind,notnull" json:"kind"`
	Comments  string    `bun:"comments" json:"comments,omitempty"`
	Email     string    `bun:"email" json:"email,omitempty"`
	Status    string    `bun:"status,notnull,default:'OPEN'" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// CreateReportRequest is the body of POST /places/{id}/reports
type CreateReportRequest struct {
	Kind     string `json:"kind"`
	Comments string `json:"comments"`
	Email    string `json:"email,omitempty"`
}

// ReportStore persists place reports.
type ReportStore interface {
	Insert(ctx context.Context, r *PlaceReport) error
	List(ctx context.Context, status string, limit, offset int) ([]PlaceReport, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// ReportService validates and files place reports.
type ReportService struct {
	store   *repository.Store
	reports ReportStore
	logr    *zap.Logger
}

func NewReportService(store *repository.Store, reports ReportStore, logr *zap.Logger) *ReportService {
	if reports == nil {
		reports = NewMemoryReportStore()
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &ReportService{store: store, reports: reports, logr: logr}
}

// Create files a report against placeID. OTHER reports need comments.
func (s *ReportService) Create(ctx context.Context, placeID string, req CreateReportRequest) (PlaceReport, error) {
	place, ok := s.store.Snapshot().Place(placeID)
	if !ok {
		return PlaceReport{}, ErrPlaceNotFound
	}

	kind := strings.ToUpper(strings.TrimSpace(req.Kind))
	if !slices.Contains(reportKinds, kind) {
		return PlaceReport{}, fmt.Errorf("%w: kind must be one of %s", ErrInvalidReport, strings.Join(reportKinds, ", "))
	}
	comments := strings.TrimSpace(req.Comments)
	if kind == ReportOther && comments == "" {
		return PlaceReport{}, fmt.Errorf("%w: comments are required", ErrInvalidReport)
	}

	now := time.Now().UTC()
	report := &PlaceReport{
		PlaceID:   place.ID,
		PlaceName: place.Name,
		Kind:      kind,
		Comments:  comments,
		Email:     strings.TrimSpace(req.Email),
		Status:    "OPEN",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		return PlaceReport{}, fmt.Errorf("save report: %w", err)
	}

	s.logr.Info("place report filed",
		zap.Int64("id", report.ID),
		zap.String("place", place.ID),
		zap.String("kind", kind))
	return *report, nil
}

// List returns reports newest first, optionally only those with status.
func (s *ReportService) List(ctx context.Context, status string, limit, offset int) ([]PlaceReport, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && !slices.Contains(reportStatuses, status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidReport, status)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.reports.List(ctx, status, limit, offset)
}

// UpdateStatus moves a report through OPEN, IN_PROGRESS, RESOLVED and CLOSED.
func (s *ReportService) UpdateStatus(ctx context.Context, id int64, status string) error {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !slices.Contains(reportStatuses, status) {
		return fmt.Errorf("%w: status must be one of %s", ErrInvalidReport, strings.Join(reportStatuses, ", "))
	}
	return s.reports.UpdateStatus(ctx, id, status)
}

// MemoryReportStore keeps reports for the life of the process.
type MemoryReportStore struct {
	mu      sync.Mutex
	reports []PlaceReport
	nextID  int64
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{}
}

func (m *MemoryReportStore) Insert(_ context.Context, r *PlaceReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.reports = append(m.reports, *r)
	return nil
}

func (m *MemoryReportStore) List(_ context.Context, status string, limit, offset int) ([]PlaceReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []PlaceReport{}
	for i := len(m.reports) - 1; i >= 0; i-- {
		if status != "" && m.reports[i].Status != status {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, m.reports[i])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryReportStore) UpdateStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.reports {
		if m.reports[i].ID == id {
			m.reports[i].Status = status
			m.reports[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrReportNotFound
}

// BunReportStore keeps reports in Postgres.
type BunReportStore struct {
	db *bun.DB
}

func NewBunReportStore(db *bun.DB) *BunReportStore {
	return &BunReportStore{db: db}
}

// EnsureSchema creates the reports table when missing.
func (s *BunReportStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*PlaceReport)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create place_reports: %w", err)
	}
	return nil
}

func (s *BunReportStore) Insert(ctx context.Context, r *PlaceReport) error {
	_, err := s.db.NewInsert().Model(r).Returning("id").Exec(ctx)
	return err
}

func (s *BunReportStore) List(ctx context.Context, status string, limit, offset int) ([]PlaceReport, error) {
	reports := []PlaceReport{}
	q := s.db.NewSelect().
		Model(&reports).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *BunReportStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.NewUpdate().
		Model((*PlaceReport)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrReportNotFound
	}
	return nil
}
