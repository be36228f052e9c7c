package offdays

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCacheSize   = 256
	defaultCacheTTL    = 5 * time.Minute
	bulkInsertParallel = 4
	maxBulkDays        = 366
	cacheLabel         = "offdays"
)

// BulkRequest closes every school in SchoolIDs on every date in the range
type BulkRequest struct {
	StartDate string   `json:"startDate" validate:"required"`
	EndDate   string   `json:"endDate" validate:"required"`
	SchoolIDs []string `json:"schoolIds" validate:"required,min=1"`
	Reason    string   `json:"reason,omitempty"`
}

// BulkResult counts the rows created and the existing pairs skipped
type BulkResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Service manages off-days
type Service struct {
	store   Store
	cache   *lru.LRU[string, calendar.OffDaySet]
	logger  *observability.Logger
	metrics *observability.Metrics

	// generations counts the invalidations per school. A read that started
	// before an invalidation does not fill the cache.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewService creates an off-day service. A zero cache size or ttl uses the
// defaults. metrics may be nil.
func NewService(store Store, cacheSize int, cacheTTL time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Service{
		store:   store,
		cache:       lru.NewLRU[string, calendar.OffDaySet](cacheSize, nil, cacheTTL),
		logger:      logger,
		metrics:     metrics,
		generations: make(map[string]uint64),
	}
}

// BulkCreate stores every (school, date) pair of the request
func (s *Service) BulkCreate(ctx context.Context, req BulkRequest) (BulkResult, error) {
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return BulkResult{}, err
	}
	end, err := calendar.ParseDate(req.EndDate)
	if err != nil {
		return BulkResult{}, err
	}
	if start.After(end) {
		return BulkResult{}, apperrors.InvalidInput("startDate must be before or equal to endDate")
	}
	schoolIDs := uniqueNonEmpty(req.SchoolIDs)
	if len(schoolIDs) == 0 {
		return BulkResult{}, apperrors.InvalidInput("at least one school is required")
	}
	if end.After(start.AddDays(maxBulkDays - 1)) {
		return BulkResult{}, apperrors.InvalidInput("date range must not exceed %d days", maxBulkDays)
	}
	return s.insert(ctx, schoolIDs, calendar.Range(start, end), strings.TrimSpace(req.Reason))
}

func (s *Service) insert(ctx context.Context, schoolIDs []string, dates []calendar.Date, reason string) (BulkResult, error) {
	var created atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkInsertParallel)
	for _, schoolID := range schoolIDs {
		g.Go(func() error {
			n, err := s.store.InsertDates(gctx, schoolID, dates, reason)
			if err != nil {
				return err
			}
			created.Add(int64(n))
			return nil
		})
	}
	err := g.Wait()
	s.invalidate(schoolIDs...)
	if err != nil {
		return BulkResult{}, err
	}

	result := BulkResult{Created: int(created.Load())}
	result.Skipped = len(schoolIDs)*len(dates) - result.Created
	s.logger.WithFields(map[string]interface{}{
		"schools": len(schoolIDs),
		"dates":   len(dates),
		"created": result.Created,
		"skipped": result.Skipped,
	}).Info("Off-days created")
	return result, nil
}

// Delete removes one off-day
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("off-day id is required")
	}
	schoolID, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(schoolID)
	return nil
}

// OffDaySet returns the explicit off-days of a school in a range
func (s *Service) OffDaySet(ctx context.Context, schoolID string, start, end calendar.Date) (calendar.OffDaySet, error) {
	key := cacheKey(schoolID, start, end)
	if set, ok := s.cache.Get(key); ok {
		s.countCache(true)
		return clone(set), nil
	}
	s.countCache(false)

	gen := s.generation(schoolID)
	days, err := s.store.ListRange(ctx, schoolID, start, end)
	if err != nil {
		return nil, err
	}
	set := calendar.NewOffDaySet()
	for _, d := range days {
		set.Add(d.Date)
	}

	s.mu.Lock()
	if s.generations[schoolID] == gen {
		s.cache.Add(key, set)
	}
	s.mu.Unlock()
	return clone(set), nil
}

// ListClosedDates returns the sorted closed dates of a school in a range:
// its explicit off-days and the fixed weekly closures
func (s *Service) ListClosedDates(ctx context.Context, schoolID, startDate, endDate string) ([]calendar.Date, error) {
	start, err := calendar.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseDate(endDate)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, apperrors.InvalidInput("start must be before or equal to end")
	}

	set, err := s.OffDaySet(ctx, schoolID, start, end)
	if err != nil {
		return nil, err
	}
	for _, d := range calendar.DefaultClosedDates(start, end) {
		set.Add(d)
	}
	return set.Sorted(), nil
}

func (s *Service) generation(schoolID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[schoolID]
}

func (s *Service) invalidate(schoolIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, schoolID := range schoolIDs {
		s.generations[schoolID]++
		prefix := schoolID + "|"
		for _, key := range s.cache.Keys() {
			if strings.HasPrefix(key, prefix) {
				s.cache.Remove(key)
			}
		}
	}
}

func (s *Service) countCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues(cacheLabel).Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues(cacheLabel).Inc()
	}
}

func cacheKey(schoolID string, start, end calendar.Date) string {
	return schoolID + "|" + start.String() + "|" + end.String()
}

func clone(set calendar.OffDaySet) calendar.OffDaySet {
	out := calendar.NewOffDaySet()
	for d := range set {
		out.Add(d)
	}
	return out
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
