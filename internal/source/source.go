// Package source defines the contract the ingestion loop consumes
// notifications through, and the extraction of notification values from
// the raw form a source exposes.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/pushrelay/pushrelay/internal/notify"
)

// AccessStatus is the outcome of asking the source for permission to
// observe notifications.
type AccessStatus int

const (
	AccessUnspecified AccessStatus = iota
	AccessAllowed
	AccessDenied
)

func (s AccessStatus) String() string {
	switch s {
	case AccessAllowed:
		return "allowed"
	case AccessDenied:
		return "denied"
	default:
		return "unspecified"
	}
}

// Raw is one pending notification as the source exposes it. Texts holds the
// visual text elements in display order: the first is the title, the second
// (when present) the body. Any field other than ID may be absent.
type Raw struct {
	ID        string
	AppName   string
	Texts     []string
	CreatedAt time.Time
}

// Source is the subsystem that yields notification snapshots and,
// optionally, push-style change events.
//
// Subscribe registers a handler called with the id of each changed
// notification. Sources without a push mechanism return an error from
// Subscribe; the caller then operates in pure polling mode. The returned
// cancel function releases the subscription and is safe to call once.
type Source interface {
	RequestAccess(ctx context.Context) (AccessStatus, error)
	Snapshot(ctx context.Context) ([]Raw, error)
	ByID(ctx context.Context, id string) (Raw, bool, error)
	Subscribe(fn func(id string)) (cancel func(), err error)
}

// ErrNoID marks a raw entry too malformed to process: without a stable id
// it cannot be deduplicated.
var ErrNoID = errors.New("raw notification has no id")

// Extract builds a Notification from a raw entry. Missing fields degrade to
// defaults: an absent app name becomes notify.UnknownApp, absent text
// elements become empty strings. Only a missing id is an error.
func Extract(r Raw) (notify.Notification, error) {
	if r.ID == "" {
		return notify.Notification{}, ErrNoID
	}
	app := r.AppName
	if app == "" {
		app = notify.UnknownApp
	}
	var title, body string
	if len(r.Texts) > 0 {
		title = r.Texts[0]
	}
	if len(r.Texts) > 1 {
		body = r.Texts[1]
	}
	return notify.Notification{
		ID:         r.ID,
		AppName:    app,
		Title:      title,
		Body:       body,
		ObservedAt: r.CreatedAt,
	}, nil
}
