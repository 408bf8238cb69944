package projection

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tbxark/intakeagent/types"
)

// Tri-state values for feasibility-shaped fields.
const (
	Yes     = "Yes"
	No      = "No"
	Partial = "Partial"
)

// keywordRule yields Label when any keyword occurs in the source text.
type keywordRule struct {
	Label    string
	Keywords []string
}

// rule declares how one output field is derived. Sources are tried in order:
// Keys (exact key first, then aliases), Derive, AI, Placeholder.
type rule struct {
	Keys      []string
	Derive    func(types.AnswerMap) string
	AI        func(*types.Analysis, *types.Recommendations) string
	Normalize func(string) string
	Set       func(*OutputRecord, string)
}

var (
	partialWords = []string{"but", "partial", "partially", "partly", "some", "depends", "however", "limited", "except"}
	noWords      = []string{"no", "not", "cannot", "can't", "unable", "never", "lack"}
	yesWords     = []string{"yes", "can", "able", "sure", "definitely", "absolutely", "ready"}

	partialRe = wordsRegexp(partialWords)
	noRe      = wordsRegexp(noWords)
	yesRe     = wordsRegexp(yesWords)
)

func wordsRegexp(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(^|[^\w'])(` + strings.Join(quoted, "|") + `)($|[^\w'])`)
}

// Normalize maps free text onto Yes, No or Partial. Partial keywords are checked first,
// then No, then Yes. Text without any keyword yields the placeholder.
func Normalize(text string) string {
	switch {
	case strings.TrimSpace(text) == "":
		return Placeholder
	case partialRe.MatchString(text):
		return Partial
	case noRe.MatchString(text):
		return No
	case yesRe.MatchString(text):
		return Yes
	default:
		return Placeholder
	}
}

var technicalMethodRules = []keywordRule{
	{Label: "Conversational AI", Keywords: []string{"chatbot", "assistant", "conversation"}},
	{Label: "Document processing", Keywords: []string{"ocr", "extract", "document", "invoice"}},
	{Label: "Predictive analytics", Keywords: []string{"predict", "forecast", "score"}},
	{Label: "Classification", Keywords: []string{"classif", "categori", "triage"}},
	{Label: "Recommendation system", Keywords: []string{"recommend", "personali"}},
	{Label: "Anomaly detection", Keywords: []string{"anomal", "fraud", "outlier"}},
	{Label: "Process automation", Keywords: []string{"automat", "rpa", "workflow"}},
}

var investmentSizeRules = []keywordRule{
	{Label: "High", Keywords: []string{"million", "large", "significant", "major"}},
	{Label: "Medium", Keywords: []string{"medium", "moderate", "quarter"}},
	{Label: "Low", Keywords: []string{"small", "minimal", "low", "little"}},
}

// firstMatch applies rules in order to text; the first rule with a matching substring wins.
func firstMatch(rules []keywordRule, text string) string {
	text = strings.ToLower(text)
	if text == "" {
		return ""
	}
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r.Label
			}
		}
	}
	return ""
}

// deriveFrom matches rules against the first non-empty answer among keys.
func deriveFrom(keys []string, rules []keywordRule) func(types.AnswerMap) string {
	return func(answers types.AnswerMap) string {
		for _, key := range keys {
			if v := answers.Text(key); v != "" {
				return firstMatch(rules, v)
			}
		}
		return ""
	}
}

var (
	solutionKeys   = []string{"proposed_solution", "solution", "solution_description"}
	investmentKeys = []string{"estimated_investment", "investment", "budget"}
)

func recommendation(pick func(types.Recommendations) string) func(*types.Analysis, *types.Recommendations) string {
	return func(_ *types.Analysis, recs *types.Recommendations) string {
		if recs == nil {
			return ""
		}
		return pick(*recs)
	}
}

func narrative(pick func(types.Analysis) string) func(*types.Analysis, *types.Recommendations) string {
	return func(a *types.Analysis, _ *types.Recommendations) string {
		if a == nil {
			return ""
		}
		return pick(*a)
	}
}

var rules = []rule{
	{Keys: []string{"use_case_name", "name", "title"}, Set: func(r *OutputRecord, v string) { r.UseCaseName = v }},
	{Keys: []string{"business_unit", "department", "unit"}, Set: func(r *OutputRecord, v string) { r.BusinessUnit = v }},
	{Keys: []string{"owner_name", "owner", "sponsor"}, Set: func(r *OutputRecord, v string) { r.Owner = v }},
	{Keys: []string{"problem_statement", "problem", "pain_point"}, Set: func(r *OutputRecord, v string) { r.ProblemStatement = v }},
	{Keys: []string{"current_process", "as_is_process"}, Set: func(r *OutputRecord, v string) { r.CurrentProcess = v }},
	{Keys: []string{"affected_users", "stakeholders", "users"}, Set: func(r *OutputRecord, v string) { r.AffectedUsers = v }},
	{Keys: solutionKeys, Set: func(r *OutputRecord, v string) { r.ProposedSolution = v }},
	{
		Keys:   []string{"technical_method", "technical_approach"},
		Derive: deriveFrom(solutionKeys, technicalMethodRules),
		AI:     recommendation(func(r types.Recommendations) string { return r.TechnicalApproach }),
		Set:    func(r *OutputRecord, v string) { r.TechnicalMethod = v },
	},
	{Keys: []string{"data_sources", "data", "systems"}, Set: func(r *OutputRecord, v string) { r.DataSources = v }},
	{
		Keys: []string{"data_strategy"},
		AI:   recommendation(func(r types.Recommendations) string { return r.DataStrategy }),
		Set:  func(r *OutputRecord, v string) { r.DataStrategy = v },
	},
	{
		Keys:      []string{"has_regulatory_impact", "regulatory_impact", "regulated"},
		Normalize: Normalize,
		Set:       func(r *OutputRecord, v string) { r.RegulatoryImpact = v },
	},
	{Keys: []string{"regulatory_details", "regulations", "compliance"}, Set: func(r *OutputRecord, v string) { r.RegulatoryDetails = v }},
	{Keys: []string{"success_kpis", "kpis", "success_metrics"}, Set: func(r *OutputRecord, v string) { r.SuccessKPIs = v }},
	{
		Keys:      []string{"can_we_execute", "feasibility", "can_execute"},
		Normalize: Normalize,
		Set:       func(r *OutputRecord, v string) { r.CanWeExecute = v },
	},
	{Keys: investmentKeys, Set: func(r *OutputRecord, v string) { r.EstimatedInvestment = v }},
	{
		Keys:   []string{"investment_size"},
		Derive: deriveFrom(investmentKeys, investmentSizeRules),
		Set:    func(r *OutputRecord, v string) { r.InvestmentSize = v },
	},
	{Keys: []string{"key_risks", "risks"}, Set: func(r *OutputRecord, v string) { r.KeyRisks = v }},
	{
		Keys: []string{"risk_mitigation", "mitigation"},
		AI:   recommendation(func(r types.Recommendations) string { return r.RiskMitigation }),
		Set:  func(r *OutputRecord, v string) { r.RiskMitigation = v },
	},
	{Keys: []string{"timeline", "target_date", "deadline"}, Set: func(r *OutputRecord, v string) { r.Timeline = v }},
	{
		AI:  narrative(func(a types.Analysis) string { return a.Summary }),
		Set: func(r *OutputRecord, v string) { r.Summary = v },
	},
	{
		Keys:   []string{"classification", "use_case_category"},
		Derive: deriveFrom(solutionKeys, technicalMethodRules),
		AI:     narrative(func(a types.Analysis) string { return a.Classification }),
		Set:    func(r *OutputRecord, v string) { r.Classification = v },
	},
	{
		AI:  narrative(func(a types.Analysis) string { return strconv.Itoa(a.Readiness) }),
		Set: func(r *OutputRecord, v string) { r.Readiness = v },
	},
	{
		AI:  narrative(func(a types.Analysis) string { return strings.Join(a.Gaps, "; ") }),
		Set: func(r *OutputRecord, v string) { r.Gaps = v },
	},
	{
		Keys: []string{"next_steps"},
		AI:   recommendation(func(r types.Recommendations) string { return r.NextSteps }),
		Set:  func(r *OutputRecord, v string) { r.NextSteps = v },
	},
}

func (r rule) resolve(answers types.AnswerMap, analysis *types.Analysis, recs *types.Recommendations) string {
	for _, key := range r.Keys {
		if v := answers.Text(key); v != "" {
			if r.Normalize != nil {
				return r.Normalize(v)
			}
			return v
		}
	}
	if r.Derive != nil {
		if v := strings.TrimSpace(r.Derive(answers)); v != "" {
			return v
		}
	}
	if r.AI != nil {
		if v := strings.TrimSpace(r.AI(analysis, recs)); v != "" {
			return v
		}
	}
	return Placeholder
}
