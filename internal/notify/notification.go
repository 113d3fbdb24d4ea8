package notify

import "time"

// UnknownApp is the app name used when the source cannot provide one.
const UnknownApp = "Unknown App"

// noContent is the outbound body placeholder for notifications that carry
// a title but no body. It is applied at delivery time only; the core keeps
// the empty string so the two cases stay distinguishable.
const noContent = "(No content)"

// Notification is one user-facing alert observed from the source. It is
// ephemeral: constructed once per observation and discarded after a single
// dispatch attempt.
type Notification struct {
	ID         string
	AppName    string
	Title      string
	Body       string
	ObservedAt time.Time // advisory only
}

// HasContent reports whether the notification has anything to deliver.
// A notification with neither title nor body is dropped before dispatch.
func (n Notification) HasContent() bool {
	return n.Title != "" || n.Body != ""
}

// bodyOrPlaceholder is used by channels when formatting the outbound body.
func bodyOrPlaceholder(body string) string {
	if body == "" {
		return noContent
	}
	return body
}
