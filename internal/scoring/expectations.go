package scoring

import "context-engine/internal/models"

// fieldWeight is one expected field for an agent type, with its importance.
type fieldWeight struct {
	Field  string
	Weight float64
}

// expectedFields lists, per agent type, the fields an aggregated snapshot
// should carry and how much each matters. Entries are ordered by descending
// weight; the first three are the fields the agent-relevance component
// checks.
var expectedFields = map[models.AgentType][]fieldWeight{
	models.AgentGeneral: {
		{"company_name", 1.0},
		{"account_status", 0.8},
		{"industry", 0.6},
		{"lifecycle_stage", 0.5},
		{"last_activity_at", 0.4},
	},
	models.AgentTechnicalSupport: {
		{"open_tickets", 1.0},
		{"ticket_history", 0.9},
		{"product_version", 0.7},
		{"last_incident_at", 0.6},
		{"sla_tier", 0.5},
	},
	models.AgentBilling: {
		{"monthly_recurring_revenue", 1.0},
		{"payment_method_valid", 0.9},
		{"outstanding_balance", 0.8},
		{"billing_cycle", 0.5},
		{"last_invoice_at", 0.4},
	},
	models.AgentSales: {
		{"pipeline_stage", 1.0},
		{"deal_size", 0.9},
		{"engagement_score", 0.7},
		{"decision_makers", 0.5},
		{"last_meeting_at", 0.4},
	},
	models.AgentCustomerSuccess: {
		{"health_score", 1.0},
		{"nps_score", 0.8},
		{"usage_trend", 0.7},
		{"renewal_date", 0.6},
		{"onboarding_complete", 0.5},
	},
	models.AgentEscalation: {
		{"open_tickets", 1.0},
		{"escalation_history", 0.9},
		{"account_status", 0.7},
		{"executive_sponsor", 0.5},
	},
	models.AgentAnalytics: {
		{"usage_metrics", 1.0},
		{"feature_adoption", 0.8},
		{"login_frequency", 0.6},
		{"seat_utilization", 0.5},
	},
	models.AgentSecurity: {
		{"auth_events", 1.0},
		{"security_incidents", 0.9},
		{"compliance_status", 0.7},
		{"last_audit_at", 0.5},
	},
}

// timestampFields are the snapshot fields the recency component considers.
var timestampFields = []string{
	"last_updated",
	"updated_at",
	"last_activity_at",
	"last_interaction_at",
	"last_login_at",
	"last_incident_at",
	"last_invoice_at",
	"last_meeting_at",
	"last_audit_at",
}

// numericRange is a validity window for a numeric field.
type numericRange struct {
	Field string
	Min   float64
	Max   float64
}

// numericRanges are the range checks the data-quality component applies when
// the field is present.
var numericRanges = []numericRange{
	{"health_score", 0, 100},
	{"engagement_score", 0, 100},
	{"nps_score", -100, 100},
	{"seat_utilization", 0, 100},
	{"monthly_recurring_revenue", 0, 1e12},
	{"outstanding_balance", 0, 1e12},
	{"deal_size", 0, 1e12},
	{"lifetime_value", 0, 1e12},
}

// placeholderValues flag string values that look like unfinished data.
var placeholderValues = []string{
	"test",
	"todo",
	"tbd",
	"unknown",
	"n/a",
	"placeholder",
	"sample",
	"dummy",
	"xxx",
	"lorem",
}
