package log

import (
	"log/slog"
	"strings"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldAccountID     = "account_id"
	FieldBudgetID      = "budget_id"
	FieldTransactionID = "transaction_id"
	FieldReplacementID = "replacement_id"
	FieldValue         = "value"
	FieldBalance       = "balance"
	FieldRebalance     = "budget_rebalance"
	FieldRows          = "rows"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentBook    = "book"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentImport  = "import"
	ComponentCLI     = "cli"
	ComponentTrace   = "trace"
	ComponentBackend = "backend"
	ComponentMetrics = "metrics"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names
const (
	OpAddAccount     = "add_account"
	OpAddBudget      = "add_budget"
	OpAddTransaction = "add_transaction"
	OpRemove         = "remove_transaction"
	OpReplace        = "replace"
	OpImport         = "import"
	OpSnapshot       = "snapshot"
	OpHistory        = "history"
	OpPublish        = "publish"
	OpShutdown       = "shutdown"
	OpStartup        = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeImport        = "import_error"
	ErrorTypeInternal      = "internal_error"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the fields identifying a booked transaction.
func (f LogFields) WithTransaction(id, value string, rebalance bool) LogFields {
	f[FieldTransactionID] = id
	f[FieldValue] = value
	f[FieldRebalance] = rebalance
	return f
}

func (f LogFields) WithAccount(id string) LogFields {
	f[FieldAccountID] = id
	return f
}

func (f LogFields) WithBudget(id string) LogFields {
	f[FieldBudgetID] = id
	return f
}

func (f LogFields) WithReplacement(current, replacement string) LogFields {
	f[FieldAccountID] = current
	f[FieldReplacementID] = replacement
	return f
}

func (f LogFields) WithBalance(balance string) LogFields {
	f[FieldBalance] = balance
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
