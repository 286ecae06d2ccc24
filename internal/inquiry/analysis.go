package inquiry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/keywords"
	"github.com/nicetoya86/ticket/internal/llm"
	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/transcript"
)

// FallbackSummary is returned when no summary could be generated.
const FallbackSummary = "고객 텍스트를 바탕으로 요약을 생성할 수 없습니다. 데이터가 부족하거나 분석이 비활성화되었습니다."

const fallbackKeywords = 10

// Corpus is the customer-only text of one inquiry type.
type Corpus struct {
	Records []models.InquiryRecord
	Text    string
	Source  string
	Stats   transcript.CorpusStats
}

type Result struct {
	ID          string                  `json:"id"`
	InquiryType string                  `json:"inquiry_type"`
	From        string                  `json:"from"`
	To          string                  `json:"to"`
	RecordCount int                     `json:"record_count"`
	Source      string                  `json:"source"`
	UsedLLM     bool                    `json:"used_llm"`
	Summary     string                  `json:"summary"`
	Themes      []llm.Theme             `json:"themes"`
	Actions     []string                `json:"actions"`
	Keywords    []keywords.KeywordCount `json:"keywords,omitempty"`
}

// Corpus loads the records of a type and reduces them to customer text.
func (s *Service) Corpus(ctx context.Context, q models.Query, inquiryType string) (*Corpus, error) {
	q = s.Normalize(q)
	records, source, err := s.Records(ctx, q, inquiryType)
	if err != nil {
		return nil, err
	}

	corpus, stats := s.extractor.ExtractCorpus(records)
	s.recordExclusions(stats)
	return &Corpus{
		Records: corpus,
		Text:    transcript.CorpusText(corpus),
		Source:  source,
		Stats:   stats,
	}, nil
}

// builder merges the stored stopwords into the defaults. A failing store
// only costs the extra stopwords.
func (s *Service) builder(ctx context.Context) *keywords.Builder {
	extra, err := s.store.StopwordTokens(ctx)
	if err != nil {
		s.logger.Warn("Failed to load stopwords", zap.Error(err))
	}
	return keywords.NewBuilder(extra...)
}

// Phrases ranks bigrams, trigrams and repeated lines in the customer corpus
// of one inquiry type.
func (s *Service) Phrases(ctx context.Context, q models.Query, inquiryType string, limit int) ([]keywords.PhraseCount, error) {
	q = s.Normalize(q)
	if inquiryType == "" {
		return []keywords.PhraseCount{}, nil
	}
	if limit <= 0 {
		limit = s.pipeline.PhraseLimit
	}

	return cached(ctx, s, cacheKey("phrases", q, inquiryType, itoa(limit)), func() ([]keywords.PhraseCount, error) {
		corpus, err := s.Corpus(ctx, q, inquiryType)
		if err != nil {
			return nil, err
		}
		return s.builder(ctx).BuildPhrases(corpus.Text, limit), nil
	})
}

// TopKeywords ranks single tokens. An empty inquiry type covers every
// allowed type.
func (s *Service) TopKeywords(ctx context.Context, q models.Query, inquiryType string, limit int) ([]keywords.KeywordCount, error) {
	q = s.Normalize(q)
	if limit <= 0 {
		limit = s.pipeline.KeywordLimit
	}

	return cached(ctx, s, cacheKey("keywords", q, inquiryType, itoa(limit)), func() ([]keywords.KeywordCount, error) {
		corpus, err := s.Corpus(ctx, q, inquiryType)
		if err != nil {
			return nil, err
		}
		return s.builder(ctx).RankTokenFrequency(corpus.Text, limit), nil
	})
}

// Analyze summarizes the customer corpus of one inquiry type.
func (s *Service) Analyze(ctx context.Context, q models.Query, inquiryType string) (*Result, error) {
	q = s.Normalize(q)
	return cached(ctx, s, cacheKey("analyze", q, inquiryType), func() (*Result, error) {
		return s.analyze(ctx, q, inquiryType, nil)
	})
}

// AnalyzeStream is Analyze with the summarizer's output streamed to onChunk
// when the summarizer supports it. Streamed results are not cached.
func (s *Service) AnalyzeStream(ctx context.Context, q models.Query, inquiryType string, onChunk func(string)) (*Result, error) {
	return s.analyze(ctx, s.Normalize(q), inquiryType, onChunk)
}

func (s *Service) analyze(ctx context.Context, q models.Query, inquiryType string, onChunk func(string)) (*Result, error) {
	start := time.Now()

	corpus, err := s.Corpus(ctx, q, inquiryType)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:          uuid.NewString(),
		InquiryType: inquiryType,
		From:        q.From,
		To:          q.To,
		RecordCount: len(corpus.Records),
		Source:      corpus.Source,
		Themes:      []llm.Theme{},
		Actions:     []string{},
	}

	text := transcript.Truncate(transcript.MaskPII(corpus.Text), s.maxInput)
	if analysis := s.summarize(ctx, inquiryType, text, onChunk); analysis != nil {
		res.UsedLLM = true
		res.Summary = analysis.Summary
		res.Themes = analysis.Themes
		res.Actions = analysis.Actions
	} else {
		res.Summary = FallbackSummary
		res.Keywords = s.builder(ctx).RankTokenFrequency(corpus.Text, fallbackKeywords)
	}

	mode := "fallback"
	if res.UsedLLM {
		mode = "llm"
	}
	elapsed := time.Since(start)
	metrics.AnalyzeTotal.WithLabelValues(mode).Inc()
	metrics.AnalyzeDuration.WithLabelValues(mode).Observe(elapsed.Seconds())

	s.record(ctx, q, res, elapsed)
	return res, nil
}

func (s *Service) summarize(ctx context.Context, inquiryType, text string, onChunk func(string)) *llm.Analysis {
	if s.summarizer == nil || text == "" {
		return nil
	}

	var (
		analysis *llm.Analysis
		err      error
	)
	if streamer, ok := s.summarizer.(StreamSummarizer); ok && onChunk != nil {
		analysis, err = streamer.SummarizeInquiriesStream(ctx, inquiryType, text, onChunk)
	} else {
		analysis, err = s.summarizer.SummarizeInquiries(ctx, inquiryType, text)
	}
	if err != nil {
		s.logger.Warn("Summarizer failed, using fallback summary",
			zap.String("inquiry_type", inquiryType),
			zap.Error(err),
		)
		return nil
	}
	return analysis
}

// record stores the analysis in the history table. Failure is logged only;
// the caller already has its result.
func (s *Service) record(ctx context.Context, q models.Query, res *Result, elapsed time.Duration) {
	body, _ := json.Marshal(res)
	rec := &models.AnalysisRecord{
		ID:          res.ID,
		InquiryType: res.InquiryType,
		From:        q.From,
		To:          q.To,
		Source:      res.Source,
		RecordCount: res.RecordCount,
		Summary:     res.Summary,
		ResultJSON:  string(body),
		UsedLLM:     res.UsedLLM,
		LatencyMS:   int(elapsed.Milliseconds()),
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertAnalysis(ctx, rec); err != nil {
		s.logger.Warn("Failed to record analysis", zap.String("analysis_id", res.ID), zap.Error(err))
	}
}
