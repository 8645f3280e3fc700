package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Cache stores AI analyses keyed by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (*MedicalAIAnalysis, bool)
	Set(ctx context.Context, key string, a *MedicalAIAnalysis)
}

// Analyzer asks a Completer for a narrative and falls back to
// RuleBasedAnalysis on any failure.
type Analyzer struct {
	completer Completer
	cache     Cache
	limiter   *rate.Limiter
	retry     extraction.RetryConfig
	validator *replyValidator
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCache sets the analysis cache.
func WithCache(c Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithLimiter bounds the completion call rate.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Analyzer) { a.limiter = l }
}

// WithRetryConfig overrides extraction.DefaultAIRetryConfig.
func WithRetryConfig(cfg extraction.RetryConfig) Option {
	return func(a *Analyzer) { a.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock sets the time source for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewLimiter allows perMinute completion calls per minute with a burst of
// one. Zero or less means unlimited and returns nil.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// NewAnalyzer creates an analyzer. A nil completer always produces the
// rule-based analysis.
func NewAnalyzer(completer Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		completer: completer,
		retry:     extraction.DefaultAIRetryConfig,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	validator, err := newReplyValidator()
	if err != nil {
		// The schema is embedded, so this only fires on a broken build.
		a.logger.Error("AI reply schema did not compile, AI analysis disabled", zap.Error(err))
		a.completer = nil
	}
	a.validator = validator
	return a
}

// Model returns the completer name, or "" when AI is disabled.
func (a *Analyzer) Model() string {
	if a.completer == nil {
		return ""
	}
	return a.completer.Name()
}

// Analyze never fails. Any AI error is logged and the rule-based analysis
// is returned instead.
func (a *Analyzer) Analyze(ctx context.Context, ext *medical.OmniExtractionResult, report *scoring.HealthReport) *MedicalAIAnalysis {
	if a.completer == nil {
		return a.fallback(ext, report)
	}

	var data *medical.ExtractedMedicalData
	if ext != nil {
		data = ext.Data
	}
	key := CacheKey(data, a.completer.Name())
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			a.logger.Debug("AI analysis cache hit", zap.String("key", key))
			return cached
		}
	}

	result, err := a.complete(ctx, ext, report)
	if err != nil {
		fields := []zap.Field{zap.String("model", a.completer.Name()), zap.Error(err)}
		if aiErr, ok := AsAIError(err); ok {
			fields = append(fields, zap.String("code", string(aiErr.Code)))
		}
		a.logger.Warn("AI analysis failed, using rule-based analysis", fields...)
		return a.fallback(ext, report)
	}

	if a.cache != nil {
		a.cache.Set(ctx, key, result)
	}
	return result
}

func (a *Analyzer) complete(ctx context.Context, ext *medical.OmniExtractionResult, report *scoring.HealthReport) (*MedicalAIAnalysis, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, &AIError{Code: ErrAIRateLimited, Message: "rate limiter wait", Provider: a.completer.Name(), Cause: err}
		}
	}

	prompt := buildPrompt(ext, report)
	reply, err := extraction.WithRetry(ctx, a.retry, func(ctx context.Context) (string, error) {
		return a.completer.Complete(ctx, systemPrompt, prompt)
	})
	if err != nil {
		return nil, err
	}

	result, err := a.validator.parseReply(a.completer.Name(), reply)
	if err != nil {
		return nil, err
	}

	result.Model = a.completer.Name()
	result.Disclaimer = Disclaimer
	result.GeneratedAt = a.now().UTC()
	if report != nil {
		// The model narrates the local numbers; it does not replace them.
		result.OverallScore = report.OverallScore
		result.RiskLevel = riskFor(report.OverallScore)
		result.CategoryScores = append([]scoring.CategoryScore(nil), report.Components...)
		predictions := report.Predictions
		result.Predictions = &predictions
		if len(result.Recommendations) == 0 {
			result.Recommendations = append(result.Recommendations, report.Recommendations...)
		}
	}
	return result, nil
}

func (a *Analyzer) fallback(ext *medical.OmniExtractionResult, report *scoring.HealthReport) *MedicalAIAnalysis {
	result := RuleBasedAnalysis(ext, report)
	result.GeneratedAt = a.now().UTC()
	return result
}

// CacheKey is the hex SHA-256 of the extracted data plus the model name, so
// identical reports analyzed by the same model share an entry.
func CacheKey(data *medical.ExtractedMedicalData, model string) string {
	if data == nil {
		data = medical.NewExtractedMedicalData()
	}
	payload, _ := json.Marshal(data)
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}
