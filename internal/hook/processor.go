package hook

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/remarkbridge/internal/report"
	"github.com/remarkbridge/internal/settings"
	"github.com/remarkbridge/internal/tracker"
)

// RepositorySynchronizer performs the blocking fetch+prune against one
// repository working copy. It reports failures through the delivery log and
// returns whether the sync succeeded.
type RepositorySynchronizer interface {
	Synchronize(ctx context.Context, repo tracker.Repository, rep *report.Log) bool
}

// ParentFinder locates the tracker ticket linked to a remote pull/merge
// request.
type ParentFinder interface {
	FindParent(ctx context.Context, project *tracker.Project, requestURL, requestBody string, rep *report.Log) (*tracker.Issue, error)
}

// RemarkInput is the correlated context handed to the remark state machine.
type RemarkInput struct {
	Event   *Event
	Project *tracker.Project
	Rule    *settings.Rule
	Author  *tracker.User
	Parent  *tracker.Issue
}

// RemarkSynchronizer applies one canonical review event to the tracker.
type RemarkSynchronizer interface {
	Apply(ctx context.Context, in RemarkInput, rep *report.Log) error
}

// Processor drives one webhook delivery through the pipeline:
// normalize, resolve project and rule, correlate, synchronize.
type Processor struct {
	normalizers map[string]Normalizer
	stores      tracker.Stores
	rules       *settings.Resolver
	gitSync     RepositorySynchronizer
	parents     ParentFinder
	remarks     RemarkSynchronizer
	logger      zerolog.Logger
}

// NewProcessor wires the pipeline. Normalizers are registered by their
// provider name.
func NewProcessor(
	normalizers []Normalizer,
	stores tracker.Stores,
	rules *settings.Resolver,
	gitSync RepositorySynchronizer,
	parents ParentFinder,
	remarks RemarkSynchronizer,
	logger zerolog.Logger,
) *Processor {
	byProvider := make(map[string]Normalizer, len(normalizers))
	for _, n := range normalizers {
		byProvider[n.Provider()] = n
	}
	return &Processor{
		normalizers: byProvider,
		stores:      stores,
		rules:       rules,
		gitSync:     gitSync,
		parents:     parents,
		remarks:     remarks,
		logger:      logger,
	}
}

// Process handles one delivery synchronously and returns the ordered
// caller-visible log lines. A returned error is either a
// *tracker.NotFoundError or a *PreconditionError; every other anomaly is an
// expected steady-state outcome recorded in the lines.
func (p *Processor) Process(ctx context.Context, d Delivery, logger zerolog.Logger) ([]string, error) {
	rep := report.New(logger)

	normalizer, ok := p.normalizers[d.Provider]
	if !ok {
		return nil, &PreconditionError{Reason: fmt.Sprintf("no normalizer registered for provider %q", d.Provider)}
	}

	ev, err := normalizer.Normalize(d.EventType, d.Body)
	if err != nil {
		return nil, err
	}

	if ev.Op == OpUnsupported {
		rep.Infof("ignoring unsupported %s event %q", d.Provider, d.EventType)
		return rep.Lines(), nil
	}

	identifier := d.Params.Get("project")
	if identifier == "" {
		identifier = ev.ProjectHint
	}
	if identifier == "" {
		return nil, &tracker.NotFoundError{Resource: "project identifier", Key: ""}
	}

	project, err := p.stores.Projects.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find project %q: %w", identifier, err)
	}
	if project == nil {
		return nil, &tracker.NotFoundError{Resource: "project", Key: identifier}
	}

	if ev.Op == OpSynchronizeRepository {
		if err := p.synchronizeRepositories(ctx, project, rep); err != nil {
			return nil, err
		}
		return rep.Lines(), nil
	}

	rule := p.rules.Resolve(project.Identifier)
	if rule == nil {
		rep.Infof("no enabled hook rule matches project %q, ignoring event", project.Identifier)
		return rep.Lines(), nil
	}

	author, err := p.resolveAuthor(ctx, ev.Actor)
	if err != nil {
		return nil, err
	}

	parent, err := p.parents.FindParent(ctx, project, ev.SubjectURL, ev.SubjectBody, rep)
	if err != nil {
		return nil, fmt.Errorf("find parent ticket for %s: %w", ev.SubjectURL, err)
	}
	if parent == nil {
		rep.Infof("request %s is not linked to a tracker ticket, ignoring event", ev.SubjectURL)
		return rep.Lines(), nil
	}

	if err := p.remarks.Apply(ctx, RemarkInput{
		Event:   ev,
		Project: project,
		Rule:    rule,
		Author:  author,
		Parent:  parent,
	}, rep); err != nil {
		return nil, err
	}
	return rep.Lines(), nil
}

// synchronizeRepositories fetches every Git-backed repository of the project
// in enumeration order. A failing repository does not block its siblings, and
// each repository gets one info line carrying the fetch and ingestion timings.
func (p *Processor) synchronizeRepositories(ctx context.Context, project *tracker.Project, rep *report.Log) error {
	repos, err := p.stores.Repositories.RepositoriesOf(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("list repositories of %q: %w", project.Identifier, err)
	}
	if len(repos) == 0 {
		rep.Infof("project %q has no repositories to synchronize", project.Identifier)
		return nil
	}

	for _, repo := range repos {
		fetchStart := time.Now()
		p.gitSync.Synchronize(ctx, repo, rep)
		fetchMS := time.Since(fetchStart).Milliseconds()

		ingestStart := time.Now()
		if err := p.stores.Repositories.IngestChangesets(ctx, repo.ID); err != nil {
			rep.Errorf("changeset ingestion failed for %s: %v", repo.RootPath, err)
		}
		ingestMS := time.Since(ingestStart).Milliseconds()

		rep.Infof("synchronized repository %s (fetch %dms, changeset ingestion %dms)", repo.RootPath, fetchMS, ingestMS)
	}
	return nil
}

// resolveAuthor maps the remote actor to a tracker user, by login first and
// email second. A missing identity is fatal; users are never auto-created.
func (p *Processor) resolveAuthor(ctx context.Context, actor Actor) (*tracker.User, error) {
	if actor.Login != "" {
		user, err := p.stores.Users.FindByLogin(ctx, actor.Login)
		if err != nil {
			return nil, fmt.Errorf("find user by login %q: %w", actor.Login, err)
		}
		if user != nil {
			return user, nil
		}
	}
	if actor.Email != "" {
		user, err := p.stores.Users.FindByEmail(ctx, actor.Email)
		if err != nil {
			return nil, fmt.Errorf("find user by email %q: %w", actor.Email, err)
		}
		if user != nil {
			return user, nil
		}
	}
	key := actor.Login
	if key == "" {
		key = actor.Email
	}
	return nil, &tracker.NotFoundError{Resource: "user", Key: key}
}
