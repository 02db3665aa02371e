package reconcile

// messages.go maps technical errors to messages an operator can act on.
//
// Sync failures carry their kind, which decides the code directly:
//
//	SYNC001 - Nothing to import: no record resolved to a process
//	SYNC002 - Unknown collection: the collection is not registered
//	SYNC003 - Import rolled back: nothing was changed, safe to retry
//	SYNC004 - Verification failed: saved data disagrees with the import;
//	          inspect the collection before retrying
//	SYNC005 - Invalid process data: empty or duplicate process number
//
// Everything else is matched case-insensitively against errorPatterns;
// the first pattern contained in the error text wins.
//
//	VAL001  - Unknown category/item code
//	VAL002  - Malformed request body
//	VAL003  - Empty collection id
//	FILE001 - File too large
//	FILE002 - Unsupported file type
//	FILE003 - Unreadable workbook
//	FILE004 - No file provided
//	RUN001  - Too many concurrent imports
//	RUN002  - Request cancelled
//	RUN003  - Request timed out
//	DB001   - Collection already exists
//	DB002   - Database unreachable
//	DB003   - Concurrent write conflict
//	RATE001 - Rate limited
//	ERR000  - Anything else; check the server log for the original error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[ErrorKind]UserMessage{
	KindInputEmpty: {
		Message: "Nothing to import: no record could be matched to a process number",
		Action:  "Check that the file contains the process number sheet (A1) or process number columns",
		Code:    "SYNC001",
	},
	KindUnknownCollection: {
		Message: "The target collection does not exist",
		Action:  "Register the collection first or check its id",
		Code:    "SYNC002",
	},
	KindTransactionFailure: {
		Message: "The import was rolled back; existing data is unchanged",
		Action:  "Please try again",
		Code:    "SYNC003",
	},
	KindVerificationMismatch: {
		Message: "Saved data does not match the import",
		Action:  "Do not retry; ask an administrator to inspect the collection",
		Code:    "SYNC004",
	},
	KindInvalidEntity: {
		Message: "A process has an empty or duplicate process number",
		Action:  "Fix the process numbers in the source data",
		Code:    "SYNC005",
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Validation (VAL)
	// =========================================================================
	{
		pattern: "unknown category/item code",
		msg: UserMessage{
			Message: "A record uses an unknown category or item code",
			Action:  "Use the item codes A1-F2 with their matching category",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request body could not be read",
			Action:  "Send a JSON object with a records array",
			Code:    "VAL002",
		},
	},
	{
		pattern: "collection id is empty",
		msg: UserMessage{
			Message: "A collection id is required",
			Action:  "Enter the document or project number of the collection",
			Code:    "VAL003",
		},
	},

	// =========================================================================
	// Files (FILE)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Remove unused sheets or split the workbook",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported workbook format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload an .xlsx workbook or a .csv export",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Re-save the file in Excel as .xlsx and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The CSV file could not be parsed",
			Action:  "Ensure the file is comma-separated",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a workbook to import",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Runs (RUN)
	// =========================================================================
	{
		pattern: "too many concurrent sync runs",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again, or import a smaller workbook",
			Code:    "RUN003",
		},
	},

	// =========================================================================
	// Database (DB)
	// =========================================================================
	{
		pattern: "collection already exists",
		msg: UserMessage{
			Message: "A collection with this id already exists",
			Action:  "Choose a different id",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "could not serialize",
		msg: UserMessage{
			Message: "Another import changed the same collection",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Rate limiting (RATE)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a UserMessage.
// Returns a zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var se *SyncError
	if errors.As(err, &se) {
		if msg, ok := kindMessages[se.Kind]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as a single line for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
