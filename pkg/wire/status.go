package wire

import "strconv"

// Status is a device response code. The codes follow HTTP semantics.
type Status uint16

const (
	// StatusUnknown is used for codes this client does not recognise.
	StatusUnknown Status = 0

	// StatusAccepted indicates the request was accepted.
	StatusAccepted Status = 202

	// StatusBadRequest indicates a malformed request or an out-of-range value.
	StatusBadRequest Status = 400

	// StatusUnauthorised indicates the connection is not authenticated.
	StatusUnauthorised Status = 401

	// StatusForbidden indicates the request is not allowed at the current
	// authentication level.
	StatusForbidden Status = 403

	// StatusNotFound indicates the key does not exist on this firmware.
	StatusNotFound Status = 404

	// StatusMethodNotAllowed indicates the key cannot be read or written.
	StatusMethodNotAllowed Status = 405

	// StatusURITooLong indicates the key or value exceeds the device limit.
	StatusURITooLong Status = 414
)

// ParseStatus maps a numeric code to a Status. Unrecognised codes map to
// StatusUnknown.
func ParseStatus(code int) Status {
	switch s := Status(code); s {
	case StatusAccepted, StatusBadRequest, StatusUnauthorised, StatusForbidden,
		StatusNotFound, StatusMethodNotAllowed, StatusURITooLong:
		return s
	default:
		return StatusUnknown
	}
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "Accepted"
	case StatusBadRequest:
		return "BadRequest"
	case StatusUnauthorised:
		return "Unauthorised"
	case StatusForbidden:
		return "Forbidden"
	case StatusNotFound:
		return "NotFound"
	case StatusMethodNotAllowed:
		return "MethodNotAllowed"
	case StatusURITooLong:
		return "URITooLong"
	case StatusUnknown:
		return "Unknown"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusAccepted
}

// IsAuthError returns true for statuses that reject an unauthenticated or
// insufficiently authenticated connection.
func (s Status) IsAuthError() bool {
	return s == StatusUnauthorised || s == StatusForbidden
}
