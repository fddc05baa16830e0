// Package remark is the state machine that keeps review remark tickets in
// step with the remote discussion: it creates a child ticket per discussion
// thread, appends follow-up comments as journal entries, and closes tickets
// when threads resolve or the request itself merges or closes. All state
// lives in the tracker; re-processing a duplicate delivery finds the existing
// child through its markers and repeats the same idempotent write.
package remark

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/remarkbridge/internal/correlate"
	"github.com/remarkbridge/internal/hook"
	"github.com/remarkbridge/internal/marker"
	"github.com/remarkbridge/internal/report"
	"github.com/remarkbridge/internal/tracker"
)

// Syncer applies canonical review events to the tracker.
type Syncer struct {
	issues     tracker.IssueStore
	correlator *correlate.Correlator
	markup     tracker.Markup
	logger     zerolog.Logger
}

func New(issues tracker.IssueStore, correlator *correlate.Correlator, markup tracker.Markup, logger zerolog.Logger) *Syncer {
	return &Syncer{issues: issues, correlator: correlator, markup: markup, logger: logger}
}

// Apply runs one transition. A parent ticket that is closed in the tracker is
// terminal: nothing is created or closed under it.
func (s *Syncer) Apply(ctx context.Context, in hook.RemarkInput, rep *report.Log) error {
	if in.Parent.Closed {
		rep.Infof("parent ticket #%d is closed, ignoring %s", in.Parent.ID, in.Event.Op)
		return nil
	}

	switch in.Event.Op {
	case hook.OpCommentOnReview:
		return s.applyComment(ctx, in, rep)
	case hook.OpThreadResolved:
		return s.applyThreadResolved(ctx, in, rep)
	case hook.OpMergeRequestStateChanged:
		return s.applyStateChange(ctx, in, rep)
	default:
		rep.Infof("no transition for %s", in.Event.Op)
		return nil
	}
}

// applyComment handles a new inline comment: append to the existing remark
// ticket (or close it when the comment carries the resolve keyword), or
// create a new remark ticket while the remote request is still open.
func (s *Syncer) applyComment(ctx context.Context, in hook.RemarkInput, rep *report.Log) error {
	ev := in.Event
	child, err := s.correlator.FindChild(ctx, in.Project, ev.ThreadID)
	if err != nil {
		return err
	}
	link := s.remoteLink(ev, ev.CommentURL)

	if child != nil {
		if child.Closed {
			rep.Infof("remark ticket #%d for discussion %s is already closed", child.ID, ev.ThreadID)
			return nil
		}
		if err := s.refreshMarkers(ctx, child, ev); err != nil {
			return err
		}

		keyword := in.Rule.ResolveKeyword
		if keyword != "" && strings.Contains(ev.CommentBody, keyword) {
			remark := strings.TrimSpace(strings.ReplaceAll(ev.CommentBody, keyword, ""))
			if remark == "" {
				remark = link
			} else {
				remark = remark + "\n\n" + link
			}
			if err := s.close(ctx, child.ID, in, remark); err != nil {
				return err
			}
			rep.Infof("closed remark ticket #%d for discussion %s", child.ID, ev.ThreadID)
			return nil
		}

		if err := s.issues.AppendJournal(ctx, child.ID, in.Author.ID, ev.CommentBody+"\n\n"+link); err != nil {
			return fmt.Errorf("append journal to ticket #%d: %w", child.ID, err)
		}
		rep.Infof("appended comment to remark ticket #%d", child.ID)
		return nil
	}

	if !ev.SubjectOpen {
		rep.Infof("request %s is not open, not creating a remark ticket", ev.SubjectURL)
		return nil
	}

	block := marker.Block{
		DiscussionID: ev.ThreadID,
		Type:         orNull(ev.ThreadType),
	}
	if ev.BlockingResolved != nil {
		block.BlockingResolved = strconv.FormatBool(*ev.BlockingResolved)
	}
	created, err := s.issues.Create(ctx, tracker.NewIssue{
		ProjectID:   in.Project.ID,
		Tracker:     in.Rule.RemarkTracker,
		Subject:     firstLine(ev.CommentBody),
		Description: ev.CommentBody + "\n\n" + link + "\n\n" + marker.Format(block),
		ParentID:    in.Parent.ID,
		AuthorID:    in.Author.ID,
	})
	if err != nil {
		return fmt.Errorf("create remark ticket under #%d: %w", in.Parent.ID, err)
	}
	rep.Infof("created remark ticket #%d under #%d for discussion %s", created.ID, in.Parent.ID, ev.ThreadID)
	return nil
}

// applyThreadResolved closes the remark ticket of a resolved review thread.
// A resolve action never creates a ticket.
func (s *Syncer) applyThreadResolved(ctx context.Context, in hook.RemarkInput, rep *report.Log) error {
	ev := in.Event
	if ev.Action != "resolved" {
		rep.Infof("ignoring review thread action %q", ev.Action)
		return nil
	}
	child, err := s.correlator.FindChild(ctx, in.Project, ev.ThreadID)
	if err != nil {
		return err
	}
	if child == nil {
		rep.Infof("no remark ticket for resolved thread %s", ev.ThreadID)
		return nil
	}
	if child.Closed {
		rep.Infof("remark ticket #%d is already closed", child.ID)
		return nil
	}
	if err := s.close(ctx, child.ID, in, "conversation resolved"); err != nil {
		return err
	}
	rep.Infof("closed remark ticket #%d for resolved thread %s", child.ID, ev.ThreadID)
	return nil
}

// applyStateChange handles pull/merge request state transitions: bulk-close
// of remark tickets on merge and close, and on GitLab updates once all
// blocking discussions are resolved.
func (s *Syncer) applyStateChange(ctx context.Context, in hook.RemarkInput, rep *report.Log) error {
	ev := in.Event

	children, err := s.issues.Search(ctx, tracker.IssueFilter{ParentID: in.Parent.ID})
	if err != nil {
		return fmt.Errorf("list children of ticket #%d: %w", in.Parent.ID, err)
	}

	switch {
	case ev.Provider == "gitlab" && ev.Action == "merge":
		candidates := filterChildren(children, func(child tracker.Issue) bool {
			return child.Tracker == in.Rule.RemarkTracker &&
				marker.Has(child.Description, marker.KeyBlockingResolved)
		})
		return s.closeAll(ctx, in, candidates, "merge request has been merged.", rep)

	case ev.Provider == "gitlab" && ev.Action == "update":
		if ev.BlockingResolved == nil || !*ev.BlockingResolved {
			rep.Infof("blocking discussions on %s are not resolved yet", ev.SubjectURL)
			return nil
		}
		candidates := filterChildren(children, func(child tracker.Issue) bool {
			if child.Tracker != in.Rule.RemarkTracker || !marker.Has(child.Description, marker.KeyBlockingResolved) {
				return false
			}
			blocking, _ := marker.Value(child.Description, marker.KeyBlockingResolved)
			noteType, _ := marker.Value(child.Description, marker.KeyType)
			return blocking == "false" || noteType == marker.Null
		})
		return s.closeAll(ctx, in, candidates, "all threads have been resolved", rep)

	case ev.Provider == "github" && ev.Action == "closed":
		candidates := filterChildren(children, func(child tracker.Issue) bool {
			return marker.Has(child.Description, marker.KeyDiscussionID)
		})
		return s.closeAll(ctx, in, candidates, "pull request has been closed.", rep)

	default:
		rep.Infof("ignoring %s request action %q", ev.Provider, ev.Action)
		return nil
	}
}

// closeAll closes every candidate with a shared remark carrying one trailing
// link to the remote request.
func (s *Syncer) closeAll(ctx context.Context, in hook.RemarkInput, candidates []tracker.Issue, remark string, rep *report.Log) error {
	if len(candidates) == 0 {
		rep.Infof("no tickets need closing for %s", in.Event.SubjectURL)
		return nil
	}
	remark = remark + "\n\n" + s.remoteLink(in.Event, "")
	for _, child := range candidates {
		if err := s.close(ctx, child.ID, in, remark); err != nil {
			return err
		}
		rep.Infof("closed remark ticket #%d", child.ID)
	}
	return nil
}

func (s *Syncer) close(ctx context.Context, issueID int64, in hook.RemarkInput, remark string) error {
	if err := s.issues.AppendJournal(ctx, issueID, in.Author.ID, remark); err != nil {
		return fmt.Errorf("append closing journal to ticket #%d: %w", issueID, err)
	}
	if err := s.issues.SetStatus(ctx, issueID, in.Rule.RemarkClosedStatus); err != nil {
		return fmt.Errorf("close ticket #%d: %w", issueID, err)
	}
	return nil
}

// refreshMarkers mutates the child's type and blocking markers in place when
// the event reports newer values, leaving all other description content
// untouched.
func (s *Syncer) refreshMarkers(ctx context.Context, child *tracker.Issue, ev *hook.Event) error {
	desc := child.Description
	desc, _ = marker.Set(desc, marker.KeyType, orNull(ev.ThreadType))
	if ev.BlockingResolved != nil {
		desc, _ = marker.Set(desc, marker.KeyBlockingResolved, strconv.FormatBool(*ev.BlockingResolved))
	}
	if desc == child.Description {
		return nil
	}
	if err := s.issues.UpdateDescription(ctx, child.ID, desc); err != nil {
		return fmt.Errorf("update markers on ticket #%d: %w", child.ID, err)
	}
	child.Description = desc
	return nil
}

// remoteLink renders the "view on remote" link, preferring the comment URL
// when one exists.
func (s *Syncer) remoteLink(ev *hook.Event, commentURL string) string {
	target := commentURL
	if target == "" {
		target = ev.SubjectURL
	}
	return s.markup.Link("View on "+providerLabel(ev.Provider), target)
}

func providerLabel(provider string) string {
	switch provider {
	case "github":
		return "GitHub"
	case "gitlab":
		return "GitLab"
	default:
		return provider
	}
}

func filterChildren(children []tracker.Issue, keep func(tracker.Issue) bool) []tracker.Issue {
	var out []tracker.Issue
	for _, child := range children {
		if child.Closed {
			continue
		}
		if keep(child) {
			out = append(out, child)
		}
	}
	return out
}

func orNull(s string) string {
	if s == "" {
		return marker.Null
	}
	return s
}

func firstLine(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
