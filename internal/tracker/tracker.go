// Package tracker defines the issue tracker collaborator surface consumed by
// the webhook processing pipeline: projects, repositories, issues, journal
// entries and users. Implementations live in trackerdb (Postgres) and
// trackertest (in-memory fakes).
package tracker

import (
	"context"
	"fmt"
	"time"
)

// Project is a tracked project, looked up by its case-insensitive identifier.
type Project struct {
	ID         int64
	Identifier string
}

// Repository is one Git-backed repository of a project. RootPath is the local
// working copy the fetch subprocess runs against.
type Repository struct {
	ID        int64
	ProjectID int64
	RootPath  string
}

// Issue is a tracker ticket. Closed reflects whether the issue's current
// status is a closed status.
type Issue struct {
	ID          int64
	ProjectID   int64
	Tracker     string
	StatusID    int64
	Subject     string
	Description string
	ParentID    int64
	AuthorID    int64
	Closed      bool
	CreatedOn   time.Time
}

// User is a tracker account. Review actors resolve to users by login first,
// then by email; users are never auto-created.
type User struct {
	ID    int64
	Login string
	Mail  string
	Name  string
}

// IssueFilter narrows an issue search. Zero values mean "any".
type IssueFilter struct {
	ProjectID           int64
	ParentID            int64
	DescriptionContains string
	OpenOnly            bool
}

// NewIssue carries the fields for issue creation.
type NewIssue struct {
	ProjectID   int64
	Tracker     string
	Subject     string
	Description string
	ParentID    int64
	AuthorID    int64
}

// ProjectStore resolves tracked projects. A missing project yields (nil, nil).
type ProjectStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Project, error)
}

// RepositoryStore enumerates a project's repositories and triggers the
// tracker's own changeset ingestion after a repository has been fetched.
type RepositoryStore interface {
	RepositoriesOf(ctx context.Context, projectID int64) ([]Repository, error)
	IngestChangesets(ctx context.Context, repositoryID int64) error
}

// IssueStore is the issue persistence surface. Search results are ordered by
// creation time ascending, then id ascending, so the last element is the most
// recently created match.
type IssueStore interface {
	Search(ctx context.Context, filter IssueFilter) ([]Issue, error)
	FindByID(ctx context.Context, id int64) (*Issue, error)
	Create(ctx context.Context, issue NewIssue) (*Issue, error)
	UpdateDescription(ctx context.Context, issueID int64, description string) error
	AppendJournal(ctx context.Context, issueID, authorID int64, notes string) error
	SetStatus(ctx context.Context, issueID, statusID int64) error
}

// UserStore resolves tracker users.
type UserStore interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
	FindByEmail(ctx context.Context, mail string) (*User, error)
}

// Stores bundles the collaborator interfaces handed to the processor.
type Stores struct {
	Projects     ProjectStore
	Repositories RepositoryStore
	Issues       IssueStore
	Users        UserStore
}

// NotFoundError is the fatal lookup failure: a missing project, project
// identifier or reviewer identity aborts the whole event and surfaces as
// HTTP 404.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}
