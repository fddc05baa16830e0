package hook_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remarkbridge/internal/correlate"
	"github.com/remarkbridge/internal/hook"
	"github.com/remarkbridge/internal/marker"
	"github.com/remarkbridge/internal/provider/github"
	"github.com/remarkbridge/internal/provider/gitlab"
	"github.com/remarkbridge/internal/remark"
	"github.com/remarkbridge/internal/report"
	"github.com/remarkbridge/internal/settings"
	"github.com/remarkbridge/internal/tracker"
	"github.com/remarkbridge/internal/tracker/trackertest"
)

type fakeGitSync struct {
	synced []string
}

func (f *fakeGitSync) Synchronize(_ context.Context, repo tracker.Repository, _ *report.Log) bool {
	f.synced = append(f.synced, repo.RootPath)
	return true
}

type pipeline struct {
	mem       *trackertest.Memory
	gitSync   *fakeGitSync
	processor *hook.Processor
}

func newPipeline(t *testing.T, rules []settings.Rule) *pipeline {
	t.Helper()
	mem := trackertest.NewMemory()
	mem.ClosedStatuses[5] = true

	resolver, err := settings.NewResolver(rules)
	require.NoError(t, err)

	gitSync := &fakeGitSync{}
	correlator := correlate.New(mem, zerolog.Nop())
	remarks := remark.New(mem, correlator, tracker.MarkdownMarkup{}, zerolog.Nop())

	return &pipeline{
		mem:     mem,
		gitSync: gitSync,
		processor: hook.NewProcessor(
			[]hook.Normalizer{github.Normalizer{}, gitlab.Normalizer{}},
			mem.Stores(),
			resolver,
			gitSync,
			correlator,
			remarks,
			zerolog.Nop(),
		),
	}
}

func defaultRules() []settings.Rule {
	return []settings.Rule{{
		ID:                 1,
		ProjectPattern:     "demo",
		Enabled:            true,
		RemarkTracker:      "Review Remark",
		RemarkClosedStatus: 5,
		ResolveKeyword:     "RESOLVE",
	}}
}

func process(t *testing.T, p *pipeline, d hook.Delivery) ([]string, error) {
	t.Helper()
	if d.Params == nil {
		d.Params = url.Values{}
	}
	return p.processor.Process(context.Background(), d, zerolog.Nop())
}

func TestProcessPushSynchronizesEveryRepository(t *testing.T) {
	p := newPipeline(t, defaultRules())
	project := p.mem.AddProject("demo")
	first := p.mem.AddRepository(project.ID, "/srv/git/demo.git")
	second := p.mem.AddRepository(project.ID, "/srv/git/demo-docs.git")

	lines, err := process(t, p, hook.Delivery{
		Provider:  "github",
		EventType: "push",
		Body:      []byte(`{"repository": {"name": "demo", "full_name": "org/demo"}, "sender": {"login": "alice"}}`),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/git/demo.git", "/srv/git/demo-docs.git"}, p.gitSync.synced)
	assert.Equal(t, []int64{first.ID, second.ID}, p.mem.Ingested)

	require.Len(t, lines, 2)
	assert.Regexp(t, `^synchronized repository /srv/git/demo\.git \(fetch \d+ms, changeset ingestion \d+ms\)$`, lines[0])
	assert.Regexp(t, `^synchronized repository /srv/git/demo-docs\.git \(fetch \d+ms, changeset ingestion \d+ms\)$`, lines[1])
}

func TestProcessPushWithoutRepositories(t *testing.T) {
	p := newPipeline(t, defaultRules())
	p.mem.AddProject("demo")

	lines, err := process(t, p, hook.Delivery{
		Provider:  "gitlab",
		EventType: "Push Hook",
		Body:      []byte(`{"object_kind": "push", "project": {"name": "demo"}, "user_username": "alice"}`),
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "no repositories to synchronize")
}

func TestProcessExplicitProjectParamWinsOverHint(t *testing.T) {
	p := newPipeline(t, defaultRules())
	project := p.mem.AddProject("demo")
	p.mem.AddRepository(project.ID, "/srv/git/demo.git")

	_, err := process(t, p, hook.Delivery{
		Provider:  "github",
		EventType: "push",
		Body:      []byte(`{"repository": {"name": "some-other-name"}, "sender": {"login": "alice"}}`),
		Params:    url.Values{"project": []string{"demo"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/git/demo.git"}, p.gitSync.synced)
}

func TestProcessUnknownProviderIsPreconditionError(t *testing.T) {
	p := newPipeline(t, defaultRules())

	_, err := process(t, p, hook.Delivery{Provider: "bitbucket", EventType: "push", Body: []byte(`{}`)})
	var precondition *hook.PreconditionError
	require.ErrorAs(t, err, &precondition)
}

func TestProcessUnsupportedEventIsAcknowledged(t *testing.T) {
	p := newPipeline(t, defaultRules())

	lines, err := process(t, p, hook.Delivery{Provider: "github", EventType: "workflow_run", Body: []byte(`{}`)})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "ignoring unsupported github event")
}

func TestProcessMissingProjectIdentifier(t *testing.T) {
	p := newPipeline(t, defaultRules())

	_, err := process(t, p, hook.Delivery{
		Provider:  "github",
		EventType: "push",
		Body:      []byte(`{"sender": {"login": "alice"}}`),
	})
	var notFound *tracker.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestProcessUnknownProject(t *testing.T) {
	p := newPipeline(t, defaultRules())

	_, err := process(t, p, hook.Delivery{
		Provider:  "github",
		EventType: "push",
		Body:      []byte(`{"repository": {"name": "demo"}, "sender": {"login": "alice"}}`),
	})
	var notFound *tracker.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "project", notFound.Resource)
}

func TestProcessNoMatchingRuleDropsReviewEvent(t *testing.T) {
	p := newPipeline(t, []settings.Rule{{
		ID: 1, ProjectPattern: "demo", Enabled: false,
		RemarkTracker: "Review Remark", RemarkClosedStatus: 5,
	}})
	p.mem.AddProject("demo")
	p.mem.AddUser("alice", "alice@example.com")

	lines, err := process(t, p, reviewCommentDelivery())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `no enabled hook rule matches project "demo"`)
}

func TestProcessUnknownAuthorIsFatal(t *testing.T) {
	p := newPipeline(t, defaultRules())
	p.mem.AddProject("demo")

	_, err := process(t, p, reviewCommentDelivery())
	var notFound *tracker.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user", notFound.Resource)
	assert.Equal(t, "alice", notFound.Key)
}

func TestProcessAuthorResolvedByEmailFallback(t *testing.T) {
	p := newPipeline(t, defaultRules())
	p.mem.AddProject("demo")
	p.mem.AddUser("not-alice", "alice@example.com")

	lines, err := process(t, p, reviewCommentDelivery())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "not linked to a tracker ticket")
}

func TestProcessUnlinkedRequestIsDropped(t *testing.T) {
	p := newPipeline(t, defaultRules())
	p.mem.AddProject("demo")
	p.mem.AddUser("alice", "alice@example.com")

	lines, err := process(t, p, reviewCommentDelivery())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "is not linked to a tracker ticket, ignoring event")
}

func TestProcessReviewCommentCreatesRemarkTicket(t *testing.T) {
	p := newPipeline(t, defaultRules())
	project := p.mem.AddProject("demo")
	p.mem.AddUser("alice", "alice@example.com")
	parent := p.mem.AddIssue(tracker.Issue{
		ProjectID:   project.ID,
		Subject:     "Review PR 7",
		Description: marker.Token(marker.KeyMergeRequestURL, "https://github.com/org/demo/pull/7"),
	})

	lines, err := process(t, p, reviewCommentDelivery())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "created remark ticket")

	children, err := p.mem.Search(context.Background(), tracker.IssueFilter{ParentID: parent.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Review Remark", children[0].Tracker)
	assert.Equal(t, "needs a nil check", children[0].Subject)
	assert.Contains(t, children[0].Description, marker.Token(marker.KeyDiscussionID, "99"))
}

func reviewCommentDelivery() hook.Delivery {
	return hook.Delivery{
		Provider:  "github",
		EventType: "pull_request_review_comment",
		Body: []byte(`{
			"action": "created",
			"comment": {"id": 99, "body": "needs a nil check", "html_url": "https://github.com/org/demo/pull/7#discussion_r99"},
			"pull_request": {"html_url": "https://github.com/org/demo/pull/7", "body": "review of the retry change", "state": "open"},
			"repository": {"name": "demo", "full_name": "org/demo"},
			"sender": {"login": "alice", "email": "alice@example.com"}
		}`),
	}
}
