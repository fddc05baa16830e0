// Package hook defines the canonical webhook event model and the processor
// that drives one delivery through normalization, project and rule
// resolution, correlation and tracker synchronization.
package hook

import (
	"fmt"
	"net/url"
)

// Op is the canonical operation derived from a provider-specific event type.
type Op int

const (
	OpUnsupported Op = iota
	OpSynchronizeRepository
	OpCommentOnReview
	OpThreadResolved
	OpMergeRequestStateChanged
)

func (op Op) String() string {
	switch op {
	case OpSynchronizeRepository:
		return "synchronize_repository"
	case OpCommentOnReview:
		return "comment_on_review"
	case OpThreadResolved:
		return "thread_resolved"
	case OpMergeRequestStateChanged:
		return "merge_request_state_changed"
	default:
		return "unsupported"
	}
}

// Actor identifies who triggered the remote event. Review-path actors must
// resolve to a tracker user (by login, then email).
type Actor struct {
	Login string
	Email string
	Name  string
}

// Event is the provider-agnostic shape of one webhook delivery.
type Event struct {
	Provider string
	Op       Op
	Action   string

	Actor Actor

	// SubjectURL and SubjectBody describe the pull/merge request the event
	// belongs to. SubjectOpen reports whether the remote request is still
	// open.
	SubjectURL  string
	SubjectBody string
	SubjectOpen bool

	// ThreadID is the durable key of a discussion thread: the GitLab
	// discussion id, or the root review comment id on GitHub.
	ThreadID   string
	ThreadType string

	CommentBody string
	CommentURL  string

	// BlockingResolved carries GitLab's blocking_discussions_resolved flag;
	// nil for providers and events that do not report it.
	BlockingResolved *bool

	// ProjectHint is the repository name embedded in the payload, used to
	// resolve the tracked project when no explicit identifier accompanies
	// the delivery.
	ProjectHint string
}

// Normalizer converts a provider's raw payloads into canonical events. One
// variant exists per provider and is selected once at ingestion.
type Normalizer interface {
	Provider() string
	Normalize(eventType string, body []byte) (*Event, error)
}

// Delivery is one inbound webhook delivery as handed over by the HTTP
// boundary.
type Delivery struct {
	Provider  string
	EventType string
	Body      []byte
	Params    url.Values
}

// PreconditionError is the defensive shape-check failure: a payload that does
// not decode into the expected structure. It surfaces as HTTP 412.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}
