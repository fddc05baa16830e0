// Package gitlab normalizes GitLab webhook payloads into canonical events.
package gitlab

import (
	"encoding/json"
	"fmt"

	"github.com/remarkbridge/internal/hook"
)

// Normalizer converts GitLab webhook deliveries. The event type is carried in
// the X-Gitlab-Event header ("Push Hook", "Note Hook", "Merge Request Hook").
type Normalizer struct{}

func (Normalizer) Provider() string { return "gitlab" }

// Normalize maps a GitLab event type to its canonical operation. Event types
// outside the supported set, and notes on anything other than a merge
// request, yield an Unsupported event rather than an error.
func (Normalizer) Normalize(eventType string, body []byte) (*hook.Event, error) {
	switch eventType {
	case "Push Hook":
		var payload pushPayload
		if err := decode(body, &payload); err != nil {
			return nil, err
		}
		return &hook.Event{
			Provider:    "gitlab",
			Op:          hook.OpSynchronizeRepository,
			ProjectHint: payload.Project.Name,
		}, nil

	case "Note Hook":
		var payload notePayload
		if err := decode(body, &payload); err != nil {
			return nil, err
		}
		if payload.ObjectAttributes.NoteableType != "MergeRequest" {
			return &hook.Event{Provider: "gitlab", Op: hook.OpUnsupported}, nil
		}
		return &hook.Event{
			Provider:         "gitlab",
			Op:               hook.OpCommentOnReview,
			Actor:            actor(payload.User),
			SubjectURL:       payload.MergeRequest.URL,
			SubjectBody:      payload.MergeRequest.Description,
			SubjectOpen:      payload.MergeRequest.State == "opened",
			ThreadID:         payload.ObjectAttributes.DiscussionID,
			ThreadType:       payload.ObjectAttributes.Type,
			CommentBody:      payload.ObjectAttributes.Note,
			CommentURL:       payload.ObjectAttributes.URL,
			BlockingResolved: payload.MergeRequest.BlockingDiscussionsResolved,
			ProjectHint:      payload.Project.Name,
		}, nil

	case "Merge Request Hook":
		var payload mergeRequestPayload
		if err := decode(body, &payload); err != nil {
			return nil, err
		}
		return &hook.Event{
			Provider:         "gitlab",
			Op:               hook.OpMergeRequestStateChanged,
			Action:           payload.ObjectAttributes.Action,
			Actor:            actor(payload.User),
			SubjectURL:       payload.ObjectAttributes.URL,
			SubjectBody:      payload.ObjectAttributes.Description,
			SubjectOpen:      payload.ObjectAttributes.State == "opened",
			BlockingResolved: payload.ObjectAttributes.BlockingDiscussionsResolved,
			ProjectHint:      payload.Project.Name,
		}, nil

	default:
		return &hook.Event{Provider: "gitlab", Op: hook.OpUnsupported}, nil
	}
}

func actor(u gitlabUser) hook.Actor {
	return hook.Actor{Login: u.Username, Email: u.Email, Name: u.Name}
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &hook.PreconditionError{Reason: fmt.Sprintf("malformed gitlab payload: %v", err)}
	}
	return nil
}
