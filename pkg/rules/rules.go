package rules

// Severity levels for alerts and suggestions
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertCategory tags the downstream alert channel a rule feeds
type AlertCategory string

const (
	CategoryFraud       AlertCategory = "fraud"
	CategoryScam        AlertCategory = "scam"
	CategoryAltercation AlertCategory = "altercation"
)

// Pattern is a single weighted phrase within a rule category
type Pattern struct {
	Phrase string  `json:"phrase"`
	Weight float64 `json:"weight"` // (0, 1]
}

// Category defines one fraud/scam rule category with its weighted phrases
type Category struct {
	Name          string        `json:"name"`
	Title         string        `json:"title"`
	Patterns      []Pattern     `json:"patterns"`
	BaseSeverity  Severity      `json:"base_severity"`
	AlertCategory AlertCategory `json:"alert_category"`
}

// Category names form a fixed closed set
const (
	FinancialFraud    = "FINANCIAL_FRAUD"
	CredentialTheft   = "CREDENTIAL_THEFT"
	Impersonation     = "IMPERSONATION"
	SocialEngineering = "SOCIAL_ENGINEERING"
	Altercation       = "ALTERCATION"
)

// DefaultCategories returns the built-in rule table. The slice order is the
// tie-break order for the scorer, so categories must stay in declaration
// order. Callers must treat the returned table as read-only.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:          FinancialFraud,
			Title:         "Financial Fraud Warning",
			BaseSeverity:  SeverityHigh,
			AlertCategory: CategoryFraud,
			Patterns: []Pattern{
				{Phrase: "wire transfer", Weight: 0.8},
				{Phrase: "western union", Weight: 0.7},
				{Phrase: "gift card", Weight: 0.7},
				{Phrase: "crypto wallet", Weight: 0.6},
				{Phrase: "routing number", Weight: 0.6},
				{Phrase: "money order", Weight: 0.5},
				{Phrase: "bitcoin", Weight: 0.5},
				{Phrase: "bank account", Weight: 0.4},
				{Phrase: "payment immediately", Weight: 0.6},
			},
		},
		{
			Name:          CredentialTheft,
			Title:         "Credential Theft Attempt",
			BaseSeverity:  SeverityHigh,
			AlertCategory: CategoryScam,
			Patterns: []Pattern{
				{Phrase: "social security number", Weight: 0.9},
				{Phrase: "verification code", Weight: 0.8},
				{Phrase: "one time code", Weight: 0.8},
				{Phrase: "pin number", Weight: 0.7},
				{Phrase: "read me the code", Weight: 0.8},
				{Phrase: "security question", Weight: 0.5},
				{Phrase: "password", Weight: 0.5},
				{Phrase: "login", Weight: 0.3},
			},
		},
		{
			Name:          Impersonation,
			Title:         "Impersonation Risk",
			BaseSeverity:  SeverityMedium,
			AlertCategory: CategoryScam,
			Patterns: []Pattern{
				{Phrase: "this is your bank", Weight: 0.8},
				{Phrase: "microsoft support", Weight: 0.8},
				{Phrase: "arrest warrant", Weight: 0.8},
				{Phrase: "calling from the irs", Weight: 0.8},
				{Phrase: "your grandson", Weight: 0.7},
				{Phrase: "tech support", Weight: 0.6},
				{Phrase: "government agency", Weight: 0.5},
			},
		},
		{
			Name:          SocialEngineering,
			Title:         "Social Engineering Attempt",
			BaseSeverity:  SeverityMedium,
			AlertCategory: CategoryScam,
			Patterns: []Pattern{
				{Phrase: "don't tell anyone", Weight: 0.8},
				{Phrase: "keep this secret", Weight: 0.8},
				{Phrase: "remote access", Weight: 0.7},
				{Phrase: "teamviewer", Weight: 0.7},
				{Phrase: "anydesk", Weight: 0.7},
				{Phrase: "before it's too late", Weight: 0.6},
				{Phrase: "act now", Weight: 0.5},
				{Phrase: "limited time", Weight: 0.4},
				{Phrase: "urgent", Weight: 0.3},
			},
		},
		{
			Name:          Altercation,
			Title:         "Heated Exchange Detected",
			BaseSeverity:  SeverityMedium,
			AlertCategory: CategoryAltercation,
			Patterns: []Pattern{
				{Phrase: "i will hurt you", Weight: 0.9},
				{Phrase: "watch your back", Weight: 0.8},
				{Phrase: "you'll regret this", Weight: 0.7},
				{Phrase: "shut up", Weight: 0.5},
				{Phrase: "get out of my face", Weight: 0.6},
				{Phrase: "threatening", Weight: 0.4},
			},
		},
	}
}
