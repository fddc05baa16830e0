// Package trackertest provides an in-memory tracker used by unit tests.
package trackertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/remarkbridge/internal/tracker"
)

// Journal is one recorded journal entry.
type Journal struct {
	IssueID  int64
	AuthorID int64
	Notes    string
}

// Memory implements every tracker store interface against process memory.
// ClosedStatuses declares which status ids count as closed; SetStatus derives
// the issue's Closed flag from it.
type Memory struct {
	mu sync.Mutex

	projects []tracker.Project
	repos    []tracker.Repository
	users    []tracker.User
	issues   map[int64]*tracker.Issue
	journals []Journal
	nextID   int64
	clock    time.Time

	ClosedStatuses map[int64]bool
	Ingested       []int64
}

func NewMemory() *Memory {
	return &Memory{
		issues:         make(map[int64]*tracker.Issue),
		nextID:         1,
		clock:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ClosedStatuses: map[int64]bool{},
	}
}

// Stores bundles the fake into the processor's collaborator set.
func (m *Memory) Stores() tracker.Stores {
	return tracker.Stores{Projects: m, Repositories: m, Issues: m, Users: m}
}

func (m *Memory) AddProject(identifier string) tracker.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := tracker.Project{ID: m.nextID, Identifier: identifier}
	m.nextID++
	m.projects = append(m.projects, p)
	return p
}

func (m *Memory) AddRepository(projectID int64, rootPath string) tracker.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := tracker.Repository{ID: m.nextID, ProjectID: projectID, RootPath: rootPath}
	m.nextID++
	m.repos = append(m.repos, r)
	return r
}

func (m *Memory) AddUser(login, mail string) tracker.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := tracker.User{ID: m.nextID, Login: login, Mail: mail}
	m.nextID++
	m.users = append(m.users, u)
	return u
}

// AddIssue records an issue directly, advancing the fake clock so insertion
// order matches creation order.
func (m *Memory) AddIssue(issue tracker.Issue) tracker.Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue.ID = m.nextID
	m.nextID++
	issue.CreatedOn = m.tick()
	copied := issue
	m.issues[issue.ID] = &copied
	return issue
}

// Issue returns a snapshot of a stored issue.
func (m *Memory) Issue(id int64) tracker.Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.issues[id]
}

// Journals returns the journal entries recorded for an issue, in order.
func (m *Memory) Journals(issueID int64) []Journal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Journal
	for _, j := range m.journals {
		if j.IssueID == issueID {
			out = append(out, j)
		}
	}
	return out
}

func (m *Memory) FindByIdentifier(_ context.Context, identifier string) (*tracker.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if strings.EqualFold(p.Identifier, identifier) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) RepositoriesOf(_ context.Context, projectID int64) ([]tracker.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tracker.Repository
	for _, r := range m.repos {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) IngestChangesets(_ context.Context, repositoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ingested = append(m.Ingested, repositoryID)
	return nil
}

func (m *Memory) Search(_ context.Context, filter tracker.IssueFilter) ([]tracker.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tracker.Issue
	for _, issue := range m.issues {
		if filter.ProjectID != 0 && issue.ProjectID != filter.ProjectID {
			continue
		}
		if filter.ParentID != 0 && issue.ParentID != filter.ParentID {
			continue
		}
		if filter.DescriptionContains != "" && !strings.Contains(issue.Description, filter.DescriptionContains) {
			continue
		}
		if filter.OpenOnly && issue.Closed {
			continue
		}
		out = append(out, *issue)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) FindByID(_ context.Context, id int64) (*tracker.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.issues[id]
	if !ok {
		return nil, nil
	}
	found := *issue
	return &found, nil
}

func (m *Memory) Create(_ context.Context, issue tracker.NewIssue) (*tracker.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := tracker.Issue{
		ID:          m.nextID,
		ProjectID:   issue.ProjectID,
		Tracker:     issue.Tracker,
		Subject:     issue.Subject,
		Description: issue.Description,
		ParentID:    issue.ParentID,
		AuthorID:    issue.AuthorID,
		CreatedOn:   m.tick(),
	}
	m.nextID++
	m.issues[created.ID] = &created
	snapshot := created
	return &snapshot, nil
}

func (m *Memory) UpdateDescription(_ context.Context, issueID int64, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[issueID].Description = description
	return nil
}

func (m *Memory) AppendJournal(_ context.Context, issueID, authorID int64, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals = append(m.journals, Journal{IssueID: issueID, AuthorID: authorID, Notes: notes})
	return nil
}

func (m *Memory) SetStatus(_ context.Context, issueID, statusID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue := m.issues[issueID]
	issue.StatusID = statusID
	issue.Closed = m.ClosedStatuses[statusID]
	return nil
}

func (m *Memory) FindByLogin(_ context.Context, login string) (*tracker.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Login == login {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindByEmail(_ context.Context, mail string) (*tracker.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Mail == mail {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}
