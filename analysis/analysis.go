// Package analysis produces the completion assessment and recommendations of an interview.
package analysis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/types"
)

type Analyzer interface {
	AnalyzeConversation(ctx context.Context, answers types.AnswerMap, history []*schema.Message) (*types.Analysis, error)
	GenerateRecommendations(ctx context.Context, answers types.AnswerMap) (*types.Recommendations, error)
}

const (
	DefaultTechnicalApproach = "Technical approach to be defined with the solution architecture team."
	DefaultDataStrategy      = "Data sourcing and preparation strategy to be defined with the data owners."
	DefaultRiskMitigation    = "Risk mitigation plan to be defined during the feasibility review."
	DefaultNextSteps         = "Schedule a review of this submission with the portfolio board."
)

func DefaultAnalysis() types.Analysis {
	return types.Analysis{
		Summary:         "Automated analysis is unavailable; the submission needs a manual review.",
		Gaps:            []string{},
		Recommendations: []string{},
		Classification:  "Unclassified",
		Readiness:       0,
	}
}

func DefaultRecommendations() types.Recommendations {
	return types.Recommendations{
		TechnicalApproach: DefaultTechnicalApproach,
		DataStrategy:      DefaultDataStrategy,
		RiskMitigation:    DefaultRiskMitigation,
		NextSteps:         DefaultNextSteps,
	}
}

// DefaultTimeout bounds each analyzer call.
const DefaultTimeout = 30 * time.Second

// Service wraps an Analyzer and substitutes fixed fallbacks for every failure.
type Service struct {
	analyzer Analyzer
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService accepts a nil analyzer, in which case Run always returns the fallbacks.
func NewService(analyzer Analyzer, opts ...Option) *Service {
	s := &Service{analyzer: analyzer, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With("source", "Analysis")
	return s
}

func (s *Service) Analyze(ctx context.Context, answers types.AnswerMap, history []*schema.Message) types.Analysis {
	if s.analyzer == nil {
		return DefaultAnalysis()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	a, err := s.analyzer.AnalyzeConversation(ctx, answers, history)
	if err != nil || a == nil {
		s.logger.Warn("conversation analysis failed, using default", "error", err)
		return DefaultAnalysis()
	}
	out := a.Clone()
	if out.Gaps == nil {
		out.Gaps = []string{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	if strings.TrimSpace(out.Classification) == "" {
		out.Classification = "Unclassified"
	}
	out.Readiness = clamp(out.Readiness, 0, 100)
	return out
}

func (s *Service) Recommend(ctx context.Context, answers types.AnswerMap) types.Recommendations {
	if s.analyzer == nil {
		return DefaultRecommendations()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	r, err := s.analyzer.GenerateRecommendations(ctx, answers)
	if err != nil || r == nil {
		s.logger.Warn("recommendation generation failed, using defaults", "error", err)
		return DefaultRecommendations()
	}
	out := *r
	def := DefaultRecommendations()
	fill(&out.TechnicalApproach, def.TechnicalApproach)
	fill(&out.DataStrategy, def.DataStrategy)
	fill(&out.RiskMitigation, def.RiskMitigation)
	fill(&out.NextSteps, def.NextSteps)
	return out
}

// Run never fails.
func (s *Service) Run(ctx context.Context, answers types.AnswerMap, history []*schema.Message) (types.Analysis, types.Recommendations) {
	return s.Analyze(ctx, answers, history), s.Recommend(ctx, answers)
}

func fill(field *string, fallback string) {
	if strings.TrimSpace(*field) == "" {
		*field = fallback
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
