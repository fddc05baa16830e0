package correlate

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remarkbridge/internal/marker"
	"github.com/remarkbridge/internal/report"
	"github.com/remarkbridge/internal/tracker"
	"github.com/remarkbridge/internal/tracker/trackertest"
)

const requestURL = "https://gitlab.example.com/group/demo/-/merge_requests/4"

func newCorrelator(mem *trackertest.Memory) *Correlator {
	return New(mem, zerolog.Nop())
}

func TestFindParentByMarker(t *testing.T) {
	mem := trackertest.NewMemory()
	project := mem.AddProject("demo")
	linked := mem.AddIssue(tracker.Issue{
		ProjectID:   project.ID,
		Subject:     "Review MR 4",
		Description: "tracking ticket\n" + marker.Token(marker.KeyMergeRequestURL, requestURL),
	})

	parent, err := newCorrelator(mem).FindParent(context.Background(), &project, requestURL, "", report.New(zerolog.Nop()))
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, linked.ID, parent.ID)
}

func TestFindParentMostRecentlyCreatedWins(t *testing.T) {
	mem := trackertest.NewMemory()
	project := mem.AddProject("demo")
	desc := marker.Token(marker.KeyMergeRequestURL, requestURL)
	mem.AddIssue(tracker.Issue{ProjectID: project.ID, Description: desc})
	newer := mem.AddIssue(tracker.Issue{ProjectID: project.ID, Description: desc})

	parent, err := newCorrelator(mem).FindParent(context.Background(), &project, requestURL, "", report.New(zerolog.Nop()))
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, newer.ID, parent.ID)
}

func TestFindParentFallbackByReference(t *testing.T) {
	mem := trackertest.NewMemory()
	project := mem.AddProject("demo")
	other := mem.AddProject("elsewhere")
	referenced := mem.AddIssue(tracker.Issue{ProjectID: other.ID, Subject: "ticket 42"})

	// The fallback resolves the referenced id directly, with no
	// project-scope check: a ticket from another project is accepted.
	parent, err := newCorrelator(mem).FindParent(
		context.Background(), &project, requestURL,
		"implements the retry change, refs #"+itoa(referenced.ID),
		report.New(zerolog.Nop()),
	)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, referenced.ID, parent.ID)
	assert.Equal(t, other.ID, parent.ProjectID)
}

func TestFindParentNoMatch(t *testing.T) {
	mem := trackertest.NewMemory()
	project := mem.AddProject("demo")

	parent, err := newCorrelator(mem).FindParent(context.Background(), &project, requestURL, "no reference here", report.New(zerolog.Nop()))
	require.NoError(t, err)
	assert.Nil(t, parent)
}

func TestFindParentDanglingReference(t *testing.T) {
	mem := trackertest.NewMemory()
	project := mem.AddProject("demo")

	rep := report.New(zerolog.Nop())
	parent, err := newCorrelator(mem).FindParent(context.Background(), &project, requestURL, "refs #9999", rep)
	require.NoError(t, err)
	assert.Nil(t, parent)
	assert.NotEmpty(t, rep.Lines())
}

func TestFindChild(t *testing.T) {
	mem := trackertest.NewMemory()
	project := mem.AddProject("demo")
	desc := "remark\n" + marker.Token(marker.KeyDiscussionID, "a1b2c3")
	mem.AddIssue(tracker.Issue{ProjectID: project.ID, Description: desc})
	newest := mem.AddIssue(tracker.Issue{ProjectID: project.ID, Description: desc})

	child, err := newCorrelator(mem).FindChild(context.Background(), &project, "a1b2c3")
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.Equal(t, newest.ID, child.ID)

	missing, err := newCorrelator(mem).FindChild(context.Background(), &project, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindChildDoesNotMatchLongerIDs(t *testing.T) {
	mem := trackertest.NewMemory()
	project := mem.AddProject("demo")
	mem.AddIssue(tracker.Issue{ProjectID: project.ID, Description: marker.Token(marker.KeyDiscussionID, "123")})

	child, err := newCorrelator(mem).FindChild(context.Background(), &project, "12")
	require.NoError(t, err)
	assert.Nil(t, child)
}

func itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}
