package telemetry

import (
	"fmt"
)

// API is what components report through instead of logging directly, so tests can
// assert that something broke.
//
// Ids name the component that reported, not the line that did: a failed completion in
// the anthropic client is "client.complete", the http error goes in the params. Ids are
// lowercase, words are joined with underscores and methods are separated with dots.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a failure that someone should look at.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something unusual that did not stop the work, like a venue
	// that had to be skipped.
	ReportWarning(id string, params ...any)
	// ReportDebug is only shown with verbose logging.
	ReportDebug(msg string, params ...any)
	// ReportCount reports a count at this point in time, counts are samples and should
	// not be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with the name of a package or component, "acquire" turns
// "static.fetch" into "acquire: static.fetch".
type ScopedAPI struct {
	scope string
	inner API
}

func NewScopedAPI(scope string, inner API) ScopedAPI {
	return ScopedAPI{scope: scope, inner: inner}
}

func (s ScopedAPI) id(id string) string {
	return fmt.Sprintf("%s: %s", s.scope, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.id(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.id(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.id(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.id(id), count)
}
