package domain

import "context"

// requestInfoKey is a context key type for storing request attribution.
type requestInfoKey struct{}

// RequestInfo carries the caller attribution recorded with every audit entry.
// The HTTP layer populates it from the request; CLI commands populate it with
// the operator identity.
type RequestInfo struct {
	CorrelationID  string
	CallerIdentity string
	CallerService  string
	SourceIP       string
}

// WithRequestInfo stores request attribution in the context.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom retrieves request attribution from the context. Returns the
// zero value when none was set.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// Apply copies the attribution into an audit entry.
func (r RequestInfo) Apply(entry *Entry) {
	entry.CorrelationID = r.CorrelationID
	entry.CallerIdentity = r.CallerIdentity
	entry.CallerService = r.CallerService
	entry.SourceIP = r.SourceIP
}
