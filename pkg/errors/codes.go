package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrTimeout: {
		Code:            ErrTimeout,
		Retryable:       true,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Raise the timeout: reelkit --timeout 5m, or REELKIT_TIMEOUT",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Retryable:       false,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Check if cancellation was intentional",
	},
	ErrRenderUnavailable: {
		Code:            ErrRenderUnavailable,
		Retryable:       true,
		Description:     "Render service unreachable or unavailable",
		SuggestedAction: "Check render service health: reelkit health render",
	},
	ErrRenderRejected: {
		Code:            ErrRenderRejected,
		Retryable:       false,
		Description:     "Render service rejected the export document",
		SuggestedAction: "Inspect the document: reelkit export <project> --output json",
	},
	ErrUnauthenticated: {
		Code:            ErrUnauthenticated,
		Retryable:       false,
		Description:     "Render service credentials missing or invalid",
		SuggestedAction: "Store an API key: reelkit auth login",
	},
	ErrStorage: {
		Code:            ErrStorage,
		Retryable:       true,
		Description:     "Project storage failed",
		SuggestedAction: "Check database connectivity: reelkit db status",
	},
	ErrParseError: {
		Code:            ErrParseError,
		Retryable:       false,
		Description:     "Transcript or project file could not be parsed",
		SuggestedAction: "Validate the input file, e.g. reelkit preview <transcript.json>",
	},
	ErrExportFailed: {
		Code:            ErrExportFailed,
		Retryable:       false,
		Description:     "Unclassified export error",
		SuggestedAction: "Re-run with --debug and check the logs",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug for more details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
