package github

// Webhook payload shapes, limited to the fields this service consumes.

type githubUser struct {
	Login string `json:"login"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type githubRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type githubPullRequest struct {
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
	State   string `json:"state"`
}

type githubReviewComment struct {
	ID          int64  `json:"id"`
	Body        string `json:"body"`
	HTMLURL     string `json:"html_url"`
	InReplyToID int64  `json:"in_reply_to_id"`
}

type pushPayload struct {
	Repository githubRepository `json:"repository"`
	Sender     githubUser       `json:"sender"`
}

type reviewCommentPayload struct {
	Action      string              `json:"action"`
	Comment     githubReviewComment `json:"comment"`
	PullRequest githubPullRequest   `json:"pull_request"`
	Repository  githubRepository    `json:"repository"`
	Sender      githubUser          `json:"sender"`
}

type reviewThreadPayload struct {
	Action string `json:"action"`
	Thread struct {
		Comments []githubReviewComment `json:"comments"`
	} `json:"thread"`
	PullRequest githubPullRequest `json:"pull_request"`
	Repository  githubRepository  `json:"repository"`
	Sender      githubUser        `json:"sender"`
}

type pullRequestPayload struct {
	Action      string            `json:"action"`
	PullRequest githubPullRequest `json:"pull_request"`
	Repository  githubRepository  `json:"repository"`
	Sender      githubUser        `json:"sender"`
}
