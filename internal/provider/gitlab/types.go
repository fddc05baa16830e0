package gitlab

// Webhook payload shapes, limited to the fields this service consumes.
// GitLab wraps event detail in object_attributes and names the event kind in
// both the X-Gitlab-Event header and the object_kind field.

type gitlabUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

type gitlabProject struct {
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

type pushPayload struct {
	ObjectKind string        `json:"object_kind"`
	UserName   string        `json:"user_name"`
	Project    gitlabProject `json:"project"`
}

type notePayload struct {
	ObjectKind       string        `json:"object_kind"`
	User             gitlabUser    `json:"user"`
	Project          gitlabProject `json:"project"`
	ObjectAttributes struct {
		ID           int64  `json:"id"`
		Note         string `json:"note"`
		NoteableType string `json:"noteable_type"`
		DiscussionID string `json:"discussion_id"`
		Type         string `json:"type"`
		URL          string `json:"url"`
	} `json:"object_attributes"`
	MergeRequest struct {
		State                       string `json:"state"`
		Description                 string `json:"description"`
		URL                         string `json:"url"`
		BlockingDiscussionsResolved *bool  `json:"blocking_discussions_resolved"`
	} `json:"merge_request"`
}

type mergeRequestPayload struct {
	ObjectKind       string        `json:"object_kind"`
	User             gitlabUser    `json:"user"`
	Project          gitlabProject `json:"project"`
	ObjectAttributes struct {
		Action                      string `json:"action"`
		State                       string `json:"state"`
		URL                         string `json:"url"`
		Description                 string `json:"description"`
		BlockingDiscussionsResolved *bool  `json:"blocking_discussions_resolved"`
	} `json:"object_attributes"`
}
