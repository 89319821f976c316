package core

// error_messages.go maps technical errors to user-facing messages with codes
// that users can quote to support.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the upload exceeds the configured limit
//	FILE002 - Unsupported file type: only .xls and .xlsx are accepted
//	FILE003 - Unreadable workbook: the file is damaged or not a spreadsheet
//	FILE004 - No file: no file was attached to the request
//	FILE005 - Empty file: the upload contained no bytes
//	FILE006 - No sheets: the workbook contains no worksheet
//
// # Record Type Errors (TYPE001-TYPE099)
//
//	TYPE001 - Unknown record type: the requested type is not registered
//	TYPE002 - Unknown field: the field key is not bound on the type
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy: every import slot is taken
//	IMP002 - Request cancelled
//	IMP003 - Request timed out
//	IMP004 - Invalid date in a date column
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Invalid records: the request body does not decode into the type
//	EXP002 - Workbook build failed
//	EXP003 - Delivery failed: writing the response or file failed
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Malformed JSON body
//	REQ002 - Unauthorized: missing or invalid API key
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Sentinel errors are matched with errors.Is first. Everything else is
// matched case-insensitively against errorPatterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the workbook into smaller files",
		Code:    "FILE001",
	}
	msgUnsupported = UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload an .xls or .xlsx workbook",
		Code:    "FILE002",
	}
	msgUnreadable = UserMessage{
		Message: "The workbook could not be read",
		Action:  "Open the file in a spreadsheet program and save it again",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please attach a workbook to import",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a workbook with a header row",
		Code:    "FILE005",
	}
	msgNoSheet = UserMessage{
		Message: "The workbook has no sheets",
		Action:  "Add a sheet with a header row",
		Code:    "FILE006",
	}
	msgUnknownType = UserMessage{
		Message: "Unknown record type",
		Action:  "List the available types and check the name",
		Code:    "TYPE001",
	}
	msgUnknownField = UserMessage{
		Message: "Unknown field",
		Action:  "Check the field name against the type's columns",
		Code:    "TYPE002",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller workbook or check your connection",
		Code:    "IMP003",
	}
)

// sentinelMessages is checked with errors.Is before any pattern.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrFileTooLarge, msgTooLarge},
	{ErrNoFile, msgNoFile},
	{ErrUnsupportedFormat, msgUnsupported},
	{ErrNoSheet, msgNoSheet},
	{ErrUnknownType, msgUnknownType},
	{ErrUnknownField, msgUnknownField},
	{ErrTooManyImports, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// File errors
	{pattern: "request body too large", msg: msgTooLarge},
	{pattern: "file too large", msg: msgTooLarge},
	{pattern: "unsupported file type", msg: msgUnsupported},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "open xlsx", msg: msgUnreadable},
	{pattern: "open xls", msg: msgUnreadable},
	{pattern: "not a valid zip file", msg: msgUnreadable},

	// Import errors
	{pattern: "too many concurrent imports", msg: msgBusy},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
			Code:    "IMP004",
		},
	},

	// Export errors
	{
		pattern: "decode",
		msg: UserMessage{
			Message: "The records do not match the selected type",
			Action:  "Check field names and value types in the request body",
			Code:    "EXP001",
		},
	},
	{
		pattern: "serialize workbook",
		msg: UserMessage{
			Message: "The workbook could not be built",
			Action:  "Please try again or contact support",
			Code:    "EXP002",
		},
	},
	{
		pattern: "write header",
		msg: UserMessage{
			Message: "The workbook could not be built",
			Action:  "Please try again or contact support",
			Code:    "EXP002",
		},
	},
	{
		pattern: "write response",
		msg: UserMessage{
			Message: "The workbook could not be delivered",
			Action:  "Please try the download again",
			Code:    "EXP003",
		},
	},

	// Request errors
	{
		pattern: "invalid character",
		msg: UserMessage{
			Message: "The request body is not valid JSON",
			Action:  "Check the request body syntax",
			Code:    "REQ001",
		},
	},
	{
		pattern: "unexpected end of json",
		msg: UserMessage{
			Message: "The request body is not valid JSON",
			Action:  "Check the request body syntax",
			Code:    "REQ001",
		},
	},
	{
		pattern: "unauthorized",
		msg: UserMessage{
			Message: "Missing or invalid API key",
			Action:  "Send a valid key in the X-API-Key header",
			Code:    "REQ002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("import: %w", ErrUnsupportedFormat))
//	// msg.Code == "FILE002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
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

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
