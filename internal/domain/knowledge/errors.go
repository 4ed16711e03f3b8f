package knowledge

// Error codes carried by apperrors.AppError. Callers branch with
// apperrors.IsCode; NoMatch is never reported as an error.
const (
	CodeInvalidQuery = "invalid_query"
	CodeEmptyStore   = "empty_store"
	CodeEmbedding    = "embedding_error"
	CodeBuild        = "build_error"
	CodeTimeout      = "timeout"
	CodeIndex        = "index_error"
)
