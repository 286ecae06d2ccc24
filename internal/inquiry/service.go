// Package inquiry serves the analytics views built on stored tickets and
// chats: cleaned texts, inquiry-type options, phrase and keyword rankings,
// and LLM summaries.
package inquiry

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/cache"
	"github.com/nicetoya86/ticket/internal/llm"
	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/transcript"
	"github.com/nicetoya86/ticket/internal/vendors/channeltalk"
	"github.com/nicetoya86/ticket/internal/vendors/zendesk"
	"github.com/nicetoya86/ticket/pkg/config"
)

// CachePrefix namespaces every cached view so ingestion can drop them at once.
const CachePrefix = "inquiry:"

var kst = time.FixedZone("KST", 9*60*60)

type Store interface {
	TextsGroupedByTicket(ctx context.Context, q models.Query) ([]models.InquiryRecord, error)
	TextsByType(ctx context.Context, q models.Query) ([]models.InquiryRecord, error)
	CountsByType(ctx context.Context, q models.Query) ([]models.TypeCount, error)
	StopwordTokens(ctx context.Context) ([]string, error)
	InsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
}

// TicketSource is the ticketing vendor consulted when the store has no
// inquiry-type data.
type TicketSource interface {
	Enabled() bool
	TicketFields(ctx context.Context) ([]zendesk.TicketField, error)
	IncrementalTickets(ctx context.Context, since time.Time, maxPages int) ([]zendesk.Ticket, error)
}

// ChatSource is the live-chat vendor consulted when the store has no
// records for a type.
type ChatSource interface {
	Enabled() bool
	ListUserChats(ctx context.Context, q channeltalk.ChatQuery) ([]channeltalk.UserChat, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]channeltalk.Message, error)
}

type Summarizer interface {
	SummarizeInquiries(ctx context.Context, inquiryType, text string) (*llm.Analysis, error)
}

// StreamSummarizer is implemented by summarizers that can report the
// completion while it is generated.
type StreamSummarizer interface {
	SummarizeInquiriesStream(ctx context.Context, inquiryType, text string, onChunk func(string)) (*llm.Analysis, error)
}

type Deps struct {
	Store      Store
	Tickets    TicketSource
	Chats      ChatSource
	Summarizer Summarizer
	Extractor  *transcript.Extractor
	Cache      cache.Cache
	Pipeline   config.PipelineConfig
	CacheTTL   time.Duration
	// MaxInputChars bounds the corpus handed to the summarizer.
	MaxInputChars int
	Logger        *zap.Logger
}

type Service struct {
	store      Store
	tickets    TicketSource
	chats      ChatSource
	summarizer Summarizer
	extractor  *transcript.Extractor
	cache      cache.Cache
	pipeline   config.PipelineConfig
	ttl        time.Duration
	maxInput   int
	logger     *zap.Logger
	now        func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		store:      d.Store,
		tickets:    d.Tickets,
		chats:      d.Chats,
		summarizer: d.Summarizer,
		extractor:  d.Extractor,
		cache:      d.Cache,
		pipeline:   d.Pipeline,
		ttl:        d.CacheTTL,
		maxInput:   d.MaxInputChars,
		logger:     d.Logger,
		now:        time.Now,
	}
	if s.extractor == nil {
		s.extractor = transcript.Default
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxInput <= 0 {
		s.maxInput = 16000
	}
	if s.pipeline.FieldTitle == "" {
		s.pipeline.FieldTitle = "문의유형(고객)"
	}
	if s.pipeline.PhraseLimit <= 0 {
		s.pipeline.PhraseLimit = 15
	}
	if s.pipeline.KeywordLimit <= 0 {
		s.pipeline.KeywordLimit = 50
	}
	if s.pipeline.LookbackDays <= 0 {
		s.pipeline.LookbackDays = 30
	}
	return s
}

// Normalize fills in the default date range and field title. Dates are KST
// calendar days.
func (s *Service) Normalize(q models.Query) models.Query {
	today := s.now().In(kst)
	if q.To == "" {
		q.To = today.Format("2006-01-02")
	}
	if q.From == "" {
		q.From = today.AddDate(0, 0, -s.pipeline.LookbackDays).Format("2006-01-02")
	}
	if q.FieldTitle == "" {
		q.FieldTitle = s.pipeline.FieldTitle
	}
	return q
}

// fieldTitles lists the query's field title followed by the configured
// candidates, without duplicates.
func (s *Service) fieldTitles(q models.Query) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range append([]string{q.FieldTitle}, s.pipeline.FieldTitleCandidates...) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func cacheKey(op string, q models.Query, extra ...string) string {
	parts := append([]string{q.From, q.To, q.FieldTitle, q.Status, q.Source}, extra...)
	return cache.Key(CachePrefix+op, parts...)
}

// cached returns the value stored under key, or runs load and stores its
// result for the service TTL.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var v T
	if ok, err := s.cache.Get(ctx, key, &v); err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		metrics.CacheHits.WithLabelValues("inquiry").Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues("inquiry").Inc()

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

func (s *Service) recordExclusions(stats transcript.CorpusStats) {
	metrics.CorpusExcluded.WithLabelValues("phone_call").Add(float64(stats.PhoneCall))
	metrics.CorpusExcluded.WithLabelValues("empty").Add(float64(stats.Empty))
	metrics.CorpusExcluded.WithLabelValues("duplicate").Add(float64(stats.Duplicate))
}

// InvalidateCache drops every cached view.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx, CachePrefix)
}

// dayRange returns the UTC instants bounding the query's KST days.
func dayRange(q models.Query) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation("2006-01-02", q.From, kst)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.ParseInLocation("2006-01-02", q.To, kst)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1).Add(-time.Second), nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
