package events

import "time"

// FetchStart is emitted before a transport round trip.
type FetchStart struct {
	URL string
	Key string
}

// FetchFinish is emitted after a transport round trip completes.
// Status is zero when the transport failed before producing a response.
type FetchFinish struct {
	URL      string
	Key      string
	Status   int
	Err      error
	Duration time.Duration
}
