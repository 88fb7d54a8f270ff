package telemetry

import "strings"

// Report levels, Recorder keys its reports by these.
const (
	LEVEL_BROKEN  = "broken"
	LEVEL_WARNING = "warning"
	LEVEL_DEBUG   = "debug"
	LEVEL_COUNT   = "count"
)

// API is how components report breakage, warnings, debug output and counts. Everything goes
// through it so tests can assert on what a component reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that broke in a way someone should fix.
	//
	// `id` names the component, not the line that failed: an operator reading it on a dashboard
	// should be able to find the broken place from the id alone. A routine that cannot find the
	// export button reports `routines.payroll-summary`, the element name and the strategies tried
	// go in params or in the wrapped error.
	//
	// ids are lowercase, underscores separate words of a component, dashes separate words of a
	// method. ScopedAPI adds the package, so ids are usually `<type>.<method>`. An id never says
	// that something broke (`db.query`, not `db.broken-query`), the level already does.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something worth investigating that is not necessarily broken.
	ReportWarning(id string, params ...any)

	// ReportDebug is dropped outside verbose mode.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a point-in-time count such as the number of files a cleanup removed.
	// Counts are samples over time and are not summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace. Scoping an already scoped API nests the
// namespaces, "service" then "audit" yields "service.audit: <id>".
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	if parent, ok := inner.(ScopedAPI); ok {
		return ScopedAPI{namespace: parent.namespace + "." + namespace, inner: parent.inner}
	}
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	var b strings.Builder
	b.Grow(len(s.namespace) + len(id) + 2)
	b.WriteString(s.namespace)
	b.WriteString(": ")
	b.WriteString(id)
	return b.String()
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
