package model

// StatusClass groups HTTP status codes for summaries and charts.
type StatusClass int

const (
	// StatusClassUnreachable covers fetches that never got a response.
	StatusClassUnreachable StatusClass = iota

	// StatusClassInformational covers 1xx responses.
	StatusClassInformational

	// StatusClassSuccess covers 2xx responses.
	StatusClassSuccess

	// StatusClassRedirect covers 3xx responses.
	StatusClassRedirect

	// StatusClassClientError covers 4xx responses.
	StatusClassClientError

	// StatusClassServerError covers 5xx responses.
	StatusClassServerError
)

// AllStatusClasses lists every class in display order.
var AllStatusClasses = []StatusClass{
	StatusClassSuccess,
	StatusClassRedirect,
	StatusClassClientError,
	StatusClassServerError,
	StatusClassInformational,
	StatusClassUnreachable,
}

// ClassifyStatus returns the class of an HTTP status code.
// Codes outside 100-599 are treated as unreachable.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 100 && code < 200:
		return StatusClassInformational
	case code >= 200 && code < 300:
		return StatusClassSuccess
	case code >= 300 && code < 400:
		return StatusClassRedirect
	case code >= 400 && code < 500:
		return StatusClassClientError
	case code >= 500 && code < 600:
		return StatusClassServerError
	default:
		return StatusClassUnreachable
	}
}

// String returns a short lowercase name for the class.
func (c StatusClass) String() string {
	switch c {
	case StatusClassUnreachable:
		return "unreachable"
	case StatusClassInformational:
		return "informational"
	case StatusClassSuccess:
		return "success"
	case StatusClassRedirect:
		return "redirect"
	case StatusClassClientError:
		return "client error"
	case StatusClassServerError:
		return "server error"
	default:
		return "unknown"
	}
}

// CountByClass tallies the records of rs per status class.
func CountByClass(rs *ResultSet) map[StatusClass]int {
	counts := make(map[StatusClass]int, len(AllStatusClasses))
	for _, rec := range rs.Records() {
		counts[ClassifyStatus(rec.Status)]++
	}
	return counts
}
