// Package prompts contains the system prompts and task templates used by
// the narrative stages of the diligence pipeline.
package prompts

// ── Task Names (canonical identifiers) ──

const (
	TaskRiskFactors = "risk_factor_classifier"
	TaskAnomalies   = "kpi_anomaly_reviewer"
	TaskGovernance  = "governance_extractor"
	TaskEvents      = "material_event_classifier"
	TaskRiskScoring = "risk_scorer"
	TaskMemo        = "memo_writer"
)

// ── System Prompts ──

// AnalystSystemPrompt frames every structured-extraction task.
const AnalystSystemPrompt = `You are a senior financial analyst at DiligenceOps performing due diligence on US public companies from their SEC EDGAR filings.

## Guidelines
1. Only use facts stated in the material you are given. Never fabricate numbers, names or dates.
2. When a value is not present, use null rather than guessing.
3. Cite specific figures when you reason about them.
4. Respond with a single JSON object that matches the requested shape. No prose outside the JSON.`

// MemoSystemPrompt frames the final report.
const MemoSystemPrompt = `You are a senior M&A analyst at DiligenceOps writing due diligence reports for an investment committee.

## Guidelines
1. Be specific: cite actual numbers from the data provided. Do not be generic.
2. Keep the deal recommendation you are given; explain it, do not change it.
3. Flag uncertainty where data is missing.
4. Respond with a single JSON object that matches the requested shape.`

// SystemPrompt returns the system prompt for a task.
func SystemPrompt(task string) string {
	if task == TaskMemo {
		return MemoSystemPrompt
	}
	return AnalystSystemPrompt
}
