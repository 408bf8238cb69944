// Package projection maps an answer document onto the fixed output record.
package projection

// Placeholder fills fields that have no source data.
const Placeholder = "TBD"

// SchemaVersion identifies the OutputRecord layout.
const SchemaVersion = "1"

// OutputRecord is the flat business record derived from a completed interview.
// Every field is non-empty.
type OutputRecord struct {
	SchemaVersion string `json:"schema_version" jsonschema:"description=Version of the record layout"`

	UseCaseName  string `json:"use_case_name" jsonschema:"description=Short name of the use case"`
	BusinessUnit string `json:"business_unit" jsonschema:"description=Owning business unit"`
	Owner        string `json:"owner" jsonschema:"description=Business owner or sponsor"`

	ProblemStatement string `json:"problem_statement" jsonschema:"description=Pain point being addressed"`
	CurrentProcess   string `json:"current_process" jsonschema:"description=How the problem is handled today"`
	AffectedUsers    string `json:"affected_users" jsonschema:"description=Teams or roles affected"`
	ProposedSolution string `json:"proposed_solution" jsonschema:"description=Solution description"`
	TechnicalMethod  string `json:"technical_method" jsonschema:"description=Technical approach label"`
	DataSources      string `json:"data_sources" jsonschema:"description=Systems and data the solution uses"`
	DataStrategy     string `json:"data_strategy" jsonschema:"description=How data is sourced and prepared"`

	RegulatoryImpact  string `json:"regulatory_impact" jsonschema:"enum=Yes,enum=No,enum=Partial,enum=TBD"`
	RegulatoryDetails string `json:"regulatory_details" jsonschema:"description=Applicable regulations"`

	SuccessKPIs         string `json:"success_kpis" jsonschema:"description=KPIs and targets"`
	CanWeExecute        string `json:"can_we_execute" jsonschema:"enum=Yes,enum=No,enum=Partial,enum=TBD"`
	EstimatedInvestment string `json:"estimated_investment" jsonschema:"description=Expected budget and effort"`
	InvestmentSize      string `json:"investment_size" jsonschema:"enum=Low,enum=Medium,enum=High,enum=TBD"`
	KeyRisks            string `json:"key_risks" jsonschema:"description=Main risks"`
	RiskMitigation      string `json:"risk_mitigation" jsonschema:"description=How the main risks are reduced"`
	Timeline            string `json:"timeline" jsonschema:"description=Target timeline"`

	Summary        string `json:"summary" jsonschema:"description=Narrative assessment"`
	Classification string `json:"classification" jsonschema:"description=Use case category"`
	Readiness      string `json:"readiness" jsonschema:"description=Readiness score 0-100"`
	Gaps           string `json:"gaps" jsonschema:"description=Missing or vague information"`
	NextSteps      string `json:"next_steps" jsonschema:"description=Immediate next actions"`
}

// Fields returns the record as ordered (json name, value) pairs.
func (r OutputRecord) Fields() [][2]string {
	return [][2]string{
		{"schema_version", r.SchemaVersion},
		{"use_case_name", r.UseCaseName},
		{"business_unit", r.BusinessUnit},
		{"owner", r.Owner},
		{"problem_statement", r.ProblemStatement},
		{"current_process", r.CurrentProcess},
		{"affected_users", r.AffectedUsers},
		{"proposed_solution", r.ProposedSolution},
		{"technical_method", r.TechnicalMethod},
		{"data_sources", r.DataSources},
		{"data_strategy", r.DataStrategy},
		{"regulatory_impact", r.RegulatoryImpact},
		{"regulatory_details", r.RegulatoryDetails},
		{"success_kpis", r.SuccessKPIs},
		{"can_we_execute", r.CanWeExecute},
		{"estimated_investment", r.EstimatedInvestment},
		{"investment_size", r.InvestmentSize},
		{"key_risks", r.KeyRisks},
		{"risk_mitigation", r.RiskMitigation},
		{"timeline", r.Timeline},
		{"summary", r.Summary},
		{"classification", r.Classification},
		{"readiness", r.Readiness},
		{"gaps", r.Gaps},
		{"next_steps", r.NextSteps},
	}
}
