// Package github normalizes GitHub webhook payloads into canonical events.
package github

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/remarkbridge/internal/hook"
)

// Normalizer converts GitHub webhook deliveries. The event type is carried in
// the X-GitHub-Event header.
type Normalizer struct{}

func (Normalizer) Provider() string { return "github" }

// Normalize maps a GitHub event type to its canonical operation. Event types
// outside the supported set yield an Unsupported event, not an error.
func (Normalizer) Normalize(eventType string, body []byte) (*hook.Event, error) {
	switch eventType {
	case "push":
		var payload pushPayload
		if err := decode(body, &payload); err != nil {
			return nil, err
		}
		return &hook.Event{
			Provider:    "github",
			Op:          hook.OpSynchronizeRepository,
			ProjectHint: payload.Repository.Name,
		}, nil

	case "pull_request_review_comment":
		var payload reviewCommentPayload
		if err := decode(body, &payload); err != nil {
			return nil, err
		}
		return &hook.Event{
			Provider:    "github",
			Op:          hook.OpCommentOnReview,
			Action:      payload.Action,
			Actor:       actor(payload.Sender),
			SubjectURL:  payload.PullRequest.HTMLURL,
			SubjectBody: payload.PullRequest.Body,
			SubjectOpen: payload.PullRequest.State == "open",
			ThreadID:    threadID(payload.Comment),
			CommentBody: payload.Comment.Body,
			CommentURL:  payload.Comment.HTMLURL,
			ProjectHint: payload.Repository.Name,
		}, nil

	case "pull_request_review_thread":
		var payload reviewThreadPayload
		if err := decode(body, &payload); err != nil {
			return nil, err
		}
		ev := &hook.Event{
			Provider:    "github",
			Op:          hook.OpThreadResolved,
			Action:      payload.Action,
			Actor:       actor(payload.Sender),
			SubjectURL:  payload.PullRequest.HTMLURL,
			SubjectBody: payload.PullRequest.Body,
			SubjectOpen: payload.PullRequest.State == "open",
			ProjectHint: payload.Repository.Name,
		}
		if len(payload.Thread.Comments) > 0 {
			// The thread is keyed by its originating comment.
			root := payload.Thread.Comments[0]
			ev.ThreadID = strconv.FormatInt(root.ID, 10)
			ev.CommentURL = root.HTMLURL
		}
		return ev, nil

	case "pull_request":
		var payload pullRequestPayload
		if err := decode(body, &payload); err != nil {
			return nil, err
		}
		return &hook.Event{
			Provider:    "github",
			Op:          hook.OpMergeRequestStateChanged,
			Action:      payload.Action,
			Actor:       actor(payload.Sender),
			SubjectURL:  payload.PullRequest.HTMLURL,
			SubjectBody: payload.PullRequest.Body,
			SubjectOpen: payload.PullRequest.State == "open",
			ProjectHint: payload.Repository.Name,
		}, nil

	default:
		return &hook.Event{Provider: "github", Op: hook.OpUnsupported}, nil
	}
}

// threadID keys a review comment to its discussion thread: replies carry the
// root comment's id as in_reply_to_id, a root comment is keyed by its own id.
func threadID(c githubReviewComment) string {
	if c.InReplyToID != 0 {
		return strconv.FormatInt(c.InReplyToID, 10)
	}
	return strconv.FormatInt(c.ID, 10)
}

func actor(u githubUser) hook.Actor {
	return hook.Actor{Login: u.Login, Email: u.Email, Name: u.Name}
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &hook.PreconditionError{Reason: fmt.Sprintf("malformed github payload: %v", err)}
	}
	return nil
}
