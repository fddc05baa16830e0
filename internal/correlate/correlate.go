// Package correlate locates the tracker tickets that correspond to remote
// pull/merge requests and to individual discussion threads, using the marker
// tokens embedded in ticket descriptions.
package correlate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/remarkbridge/internal/marker"
	"github.com/remarkbridge/internal/report"
	"github.com/remarkbridge/internal/tracker"
)

var refsPattern = regexp.MustCompile(`refs #(\d+)`)

// Correlator resolves parent and child tickets. Lookups take "most recently
// created wins": concurrent duplicate deliveries can in the worst case create
// one duplicate child, and subsequent events then converge on the newest one.
type Correlator struct {
	issues tracker.IssueStore
	logger zerolog.Logger
}

func New(issues tracker.IssueStore, logger zerolog.Logger) *Correlator {
	return &Correlator{issues: issues, logger: logger}
}

// FindParent locates the ticket linked to a remote request, primarily by the
// merge request URL marker, falling back to a `refs #<id>` token in the
// remote request's own description. The fallback resolves the ticket id
// directly without a project-scope check; cross-project references are
// accepted and logged.
func (c *Correlator) FindParent(ctx context.Context, project *tracker.Project, requestURL, requestBody string, rep *report.Log) (*tracker.Issue, error) {
	matches, err := c.issues.Search(ctx, tracker.IssueFilter{
		ProjectID:           project.ID,
		DescriptionContains: marker.Token(marker.KeyMergeRequestURL, requestURL),
	})
	if err != nil {
		return nil, fmt.Errorf("search parent ticket by url marker: %w", err)
	}
	if len(matches) > 0 {
		parent := matches[len(matches)-1]
		return &parent, nil
	}

	m := refsPattern.FindStringSubmatch(requestBody)
	if m == nil {
		return nil, nil
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, nil
	}
	issue, err := c.issues.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve referenced ticket #%d: %w", id, err)
	}
	if issue == nil {
		rep.Infof("request references ticket #%d, which does not exist", id)
		return nil, nil
	}
	if issue.ProjectID != project.ID {
		c.logger.Info().
			Int64("ticket", issue.ID).
			Int64("ticket_project", issue.ProjectID).
			Int64("event_project", project.ID).
			Msg("reference resolved across projects")
	}
	return issue, nil
}

// FindChild locates the remark ticket of one discussion thread by its
// discussion id marker; the most recently created match wins.
func (c *Correlator) FindChild(ctx context.Context, project *tracker.Project, discussionID string) (*tracker.Issue, error) {
	if discussionID == "" {
		return nil, nil
	}
	matches, err := c.issues.Search(ctx, tracker.IssueFilter{
		ProjectID:           project.ID,
		DescriptionContains: marker.Token(marker.KeyDiscussionID, discussionID),
	})
	if err != nil {
		return nil, fmt.Errorf("search remark ticket for discussion %s: %w", discussionID, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	child := matches[len(matches)-1]
	return &child, nil
}
