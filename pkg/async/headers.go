package async

// HTTP header names used by the asynchronous request pattern.
const (
	// HeaderLocation carries the monitor URL on a 202 Accepted response.
	HeaderLocation = "Location"

	// HeaderRetryAfter is the suggested minimum delay, in seconds, before polling.
	HeaderRetryAfter = "Retry-After"

	// HeaderPreferenceApplied echoes the preferences the service honoured.
	HeaderPreferenceApplied = "Preference-Applied"

	// HeaderPrefer carries preferences on the request.
	HeaderPrefer = "Prefer"

	HeaderODataVersion    = "OData-Version"
	HeaderODataMaxVersion = "OData-MaxVersion"
)

// Version is a negotiated OData protocol version.
type Version string

const (
	// V40 is OData 4.0.
	V40 Version = "4.0"

	// V401 is OData 4.01.
	V401 Version = "4.01"
)

// Valid reports whether v is a supported protocol version.
func (v Version) Valid() bool {
	return v == V40 || v == V401
}

// RespondAsync returns the preference token asking the service to process
// the request asynchronously.
func (v Version) RespondAsync() string {
	return "respond-async"
}

// ContinueOnError returns the preference token asking the service to keep
// processing batch parts after a failure. 4.01 dropped the "odata." prefix.
func (v Version) ContinueOnError() string {
	if v == V401 {
		return "continue-on-error"
	}
	return "odata.continue-on-error"
}
