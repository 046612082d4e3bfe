package attendance

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"schoolattend/internal/engine"
)

var (
	// ErrInvalidInput is returned for missing or malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotMember is returned when a captain is not a student of the section.
	ErrNotMember = errors.New("person is not a student of the section")
	// ErrDegraded is returned when a report could not be built from complete
	// data and was therefore not stored.
	ErrDegraded = errors.New("report built from incomplete data")
)

// reportNamespace scopes the name-based ids of stored reports.
var reportNamespace = uuid.MustParse("8f5c2f0e-3c1e-4d6a-9a57-2f1d7c0e6b41")

// Store is the persistence the service needs beyond the engine's reads.
type Store interface {
	Roster(ctx context.Context, filter engine.RosterFilter) ([]engine.RosterMember, error)
	AssignCaptain(ctx context.Context, sec engine.Section, personID string, at time.Time) error
	Captain(ctx context.Context, sec engine.Section) (string, error)
	UpsertReport(ctx context.Context, rep StoredReport) error
	GetReport(ctx context.Context, key string) (*StoredReport, error)
}

// Cache holds rendered report bodies.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
}

// Options configures a Service.
type Options struct {
	Logger      *zap.Logger
	HistoryDays int
	// Now overrides the wall clock.
	Now func() time.Time
}

// Service coordinates engine queries with captain assignment and report
// storage.
type Service struct {
	store       Store
	eng         *engine.Engine
	cache       Cache
	log         *zap.Logger
	now         func() time.Time
	historyDays int
}

// NewService wires a service. cache may be nil.
func NewService(store Store, eng *engine.Engine, cache Cache, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = engine.DefaultHistoryDays
	}
	return &Service{
		store:       store,
		eng:         eng,
		cache:       cache,
		log:         opts.Logger,
		now:         opts.Now,
		historyDays: opts.HistoryDays,
	}
}

// Today is the current school-local date.
func (s *Service) Today() civil.Date {
	return engine.At(s.now(), s.eng.Location()).Date
}

// Audience resolves who must attend on date.
func (s *Service) Audience(ctx context.Context, date civil.Date) engine.Audience {
	return s.eng.ResolveAudience(ctx, date)
}

// LiveStatus classifies personID on date as of now.
func (s *Service) LiveStatus(ctx context.Context, personID string, date civil.Date) engine.LiveResult {
	return s.eng.LiveStatus(ctx, personID, date, s.now())
}

// History returns personID's ledger for the last days days; zero uses the
// configured default.
func (s *Service) History(ctx context.Context, personID string, days int) engine.History {
	if days <= 0 {
		days = s.historyDays
	}
	now := s.now()
	from, to := engine.HistoryRange(now, s.eng.Location(), days)
	return s.eng.History(ctx, personID, from, to, now)
}

// SectionBoard returns the live board of sec on date with its captain.
func (s *Service) SectionBoard(ctx context.Context, sec engine.Section, date civil.Date) engine.Board {
	board := s.eng.SectionBoard(ctx, sec, date, s.now())
	captain, err := s.store.Captain(ctx, sec)
	if err != nil {
		s.log.Warn("captain lookup failed", zap.Stringer("section", sec), zap.Error(err))
		return board
	}
	board.Captain = captain
	return board
}

// AssignCaptain makes personID the captain of sec.
func (s *Service) AssignCaptain(ctx context.Context, sec engine.Section, personID string) error {
	personID = strings.TrimSpace(personID)
	if personID == "" || sec.Program == "" || sec.Year == "" || sec.Section == "" {
		return errors.Wrap(ErrInvalidInput, "section and person id required")
	}
	members, err := s.store.Roster(ctx, engine.RosterFilter{
		Program: sec.Program, Year: sec.Year, Section: sec.Section, Role: engine.RoleStudent,
	})
	if err != nil {
		return errors.Wrap(err, "load section roster")
	}
	found := false
	for _, m := range members {
		if m.PersonID == personID {
			found = true
			break
		}
	}
	if !found {
		return ErrNotMember
	}
	if err := s.store.AssignCaptain(ctx, sec, personID, s.now()); err != nil {
		return err
	}
	s.log.Info("captain assigned", zap.Stringer("section", sec), zap.String("person_id", personID))
	return nil
}

// ReportKey identifies a stored report by month and filter.
func ReportKey(req engine.ReportRequest) string {
	f := req.Filter
	return strings.Join([]string{req.Month.String(), f.Program, f.Year, f.Section, string(f.Role)}, "|")
}

// ReportResult is a monthly report with its provenance.
type ReportResult struct {
	Report      engine.MonthlyReport `json:"report"`
	Cached      bool                 `json:"cached"`
	GeneratedAt *time.Time           `json:"generated_at,omitempty"`
}

// Report returns the monthly report for req. With preferStored set, the
// Redis cache and then the stored copy are tried before computing live.
func (s *Service) Report(ctx context.Context, req engine.ReportRequest, preferStored bool) (ReportResult, error) {
	if preferStored {
		key := ReportKey(req)
		if res, ok := s.cachedReport(ctx, key); ok {
			return res, nil
		}
		stored, err := s.store.GetReport(ctx, key)
		if err != nil {
			s.log.Warn("stored report lookup failed", zap.String("key", key), zap.Error(err))
		} else if stored != nil {
			var rep engine.MonthlyReport
			if err := json.Unmarshal(stored.Body, &rep); err == nil {
				s.cacheReport(ctx, key, stored.Body)
				at := stored.GeneratedAt
				return ReportResult{Report: rep, Cached: true, GeneratedAt: &at}, nil
			}
			s.log.Warn("stored report undecodable", zap.String("key", key))
		}
	}
	return ReportResult{Report: s.eng.MonthlyReport(ctx, req, s.now())}, nil
}

func (s *Service) cachedReport(ctx context.Context, key string) (ReportResult, bool) {
	if s.cache == nil {
		return ReportResult{}, false
	}
	body, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		return ReportResult{}, false
	}
	if !ok {
		return ReportResult{}, false
	}
	var rep engine.MonthlyReport
	if err := json.Unmarshal(body, &rep); err != nil {
		s.log.Warn("cached report undecodable", zap.String("key", key), zap.Error(err))
		return ReportResult{}, false
	}
	return ReportResult{Report: rep, Cached: true}, true
}

func (s *Service) cacheReport(ctx context.Context, key string, body []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, body); err != nil {
		s.log.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) evictReport(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("report cache evict failed", zap.String("key", key), zap.Error(err))
	}
}

// GenerateReport recomputes the report for req, stores it and refreshes the
// cache. The stored id is derived from the body, so regenerating an
// unchanged report stores the same row.
func (s *Service) GenerateReport(ctx context.Context, req engine.ReportRequest) (StoredReport, error) {
	rep := s.eng.MonthlyReport(ctx, req, s.now())
	if rep.Degraded {
		// the cached body predates this regeneration; readers fall back to
		// the stored row or a live build
		s.evictReport(ctx, ReportKey(req))
		return StoredReport{}, errors.Wrapf(ErrDegraded, "report %s", ReportKey(req))
	}
	body, err := json.Marshal(rep)
	if err != nil {
		return StoredReport{}, errors.Wrap(err, "encode report")
	}
	filter, err := json.Marshal(req.Filter)
	if err != nil {
		return StoredReport{}, errors.Wrap(err, "encode filter")
	}
	key := ReportKey(req)
	stored := StoredReport{
		Key:         key,
		Month:       req.Month.String(),
		Filter:      filter,
		Body:        body,
		GeneratedID: uuid.NewSHA1(reportNamespace, append([]byte(key+"\n"), body...)).String(),
		GeneratedAt: s.now().UTC(),
	}
	if err := s.store.UpsertReport(ctx, stored); err != nil {
		return StoredReport{}, err
	}
	s.cacheReport(ctx, key, body)
	s.log.Info("monthly report generated",
		zap.String("key", key),
		zap.String("generated_id", stored.GeneratedID),
		zap.Int("people", len(rep.People)),
	)
	return stored, nil
}
