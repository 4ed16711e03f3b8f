package support

// Error codes returned by the orchestrator.
const (
	CodeInvalidInput    = "invalid_input"
	CodeOperatorBusy    = "operator_busy"
	CodeFeatureDisabled = "feature_disabled"
	CodeSession         = "session_error"
	CodeStorage         = "storage_error"
	CodeLLM             = "llm_error"
)
