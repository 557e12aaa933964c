package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldUsername    = "username"
	FieldTxID        = "transaction_id"
	FieldTxTitle     = "title"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldSheetRef    = "sheet_ref"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentAuth    = "auth"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentService = "service"
)

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

// WithUser adds user identity fields
func (f LogFields) WithUser(userID int64, username string) LogFields {
	f[FieldUserID] = userID
	if username != "" {
		f[FieldUsername] = username
	}
	return f
}

// WithTransaction adds transaction fields
func (f LogFields) WithTransaction(id int64, title string, amountCents int64, category string) LogFields {
	f[FieldTxID] = id
	f[FieldTxTitle] = title
	f[FieldAmountCents] = amountCents
	f[FieldCategory] = category
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
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
