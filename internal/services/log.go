package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

const (
	defaultLogRetentionDays = 30
	logQueueSize            = 256
)

// sensitiveFields are stripped from request bodies before they are logged.
var sensitiveFields = map[string]struct{}{
	"password":        {},
	"oldpassword":     {},
	"newpassword":     {},
	"confirmpassword": {},
	"refreshtoken":    {},
	"accesstoken":     {},
}

// LogRepository defines persistence operations for audit logs.
type LogRepository interface {
	Create(ctx context.Context, entry types.RequestLog) (types.RequestLog, error)
	List(ctx context.Context, filter types.LogFilter) ([]types.RequestLog, int, error)
	GetByID(ctx context.Context, id string) (types.RequestLog, error)
	Delete(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogListInput holds raw audit log filters from the query string.
type LogListInput struct {
	Method     string
	StatusCode string
	UserID     string
	From       string
	To         string
	Page       types.Page
}

// LogService records request audit logs in the background and serves the
// audit log endpoints.
type LogService struct {
	repo   LogRepository
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan types.RequestLog
	done   chan struct{}
}

func NewLogService(repo LogRepository, logger *zap.Logger) *LogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		queue:  make(chan types.RequestLog, logQueueSize),
		done:   make(chan struct{}),
	}
}

// Run writes queued entries until Close is called and the queue is drained.
func (s *LogService) Run(ctx context.Context) {
	defer close(s.done)
	for entry := range s.queue {
		if _, err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
			s.logger.Warn("write audit log", zap.String("path", entry.Path), zap.Error(err))
		}
	}
}

// Enqueue hands an entry to the background writer. Entries are dropped when
// the queue is full or closed so request handling never blocks on the audit
// log.
func (s *LogService) Enqueue(entry types.RequestLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Debug("audit log queue closed", zap.String("path", entry.Path))
		return
	}
	select {
	case s.queue <- entry:
	default:
		s.logger.Warn("audit log queue full, dropping entry", zap.String("path", entry.Path))
	}
}

// Close stops accepting entries and waits for the writer to drain, or for
// ctx to expire.
func (s *LogService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SanitizeBody drops credential fields from a JSON request body. Bodies that
// are not JSON objects are not logged.
func SanitizeBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	for key := range fields {
		if _, ok := sensitiveFields[strings.ToLower(key)]; ok {
			delete(fields, key)
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return out
}

func (s *LogService) List(ctx context.Context, in LogListInput) (types.Paginated[types.RequestLog], error) {
	filter := types.LogFilter{
		Method: strings.ToUpper(strings.TrimSpace(in.Method)),
		UserID: strings.TrimSpace(in.UserID),
		Page:   types.NewPage(in.Page.Number, in.Page.Size),
	}
	if in.StatusCode != "" {
		code, err := strconv.Atoi(in.StatusCode)
		if err != nil || code < 100 || code > 599 {
			return types.Paginated[types.RequestLog]{}, apperr.BadRequest("Invalid status_code")
		}
		filter.StatusCode = code
	}
	var err error
	if filter.From, err = optionalDate("startDate", in.From); err != nil {
		return types.Paginated[types.RequestLog]{}, err
	}
	if filter.To, err = optionalDate("endDate", in.To); err != nil {
		return types.Paginated[types.RequestLog]{}, err
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return types.Paginated[types.RequestLog]{}, apperr.Internal(err, "list logs")
	}
	return types.NewPaginated(filter.Page, items, total), nil
}

func (s *LogService) Get(ctx context.Context, id string) (types.RequestLog, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.RequestLog{}, mapNotFound(err, "Log not found")
	}
	return entry, nil
}

func (s *LogService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapNotFound(err, "Log not found")
	}
	return nil
}

// ClearOld deletes logs older than days and returns how many were removed.
// Zero days means the default retention.
func (s *LogService) ClearOld(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, apperr.BadRequest("days must be a positive number")
	}
	if days == 0 {
		days = defaultLogRetentionDays
	}
	cutoff := s.now().AddDate(0, 0, -days)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperr.Internal(err, "clear old logs")
	}
	s.logger.Info("old audit logs cleared", zap.Int("days", days), zap.Int64("deleted", deleted))
	return deleted, nil
}
