// Package trackerdb implements the tracker store interfaces against a
// Postgres tracker database.
package trackerdb

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remarkbridge/internal/tracker"
)

//go:embed schema.sql
var schemaSQL string

// DB is a pgx-backed tracker store. It implements every interface in
// tracker.Stores.
type DB struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping tracker database: %w", err)
	}
	return &DB{pool: pool}, nil
}

func (d *DB) Close() {
	d.pool.Close()
}

// EnsureSchema creates the tracker tables when they do not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply tracker schema: %w", err)
	}
	return nil
}

// Stores bundles the adapter into the processor's collaborator set.
func (d *DB) Stores() tracker.Stores {
	return tracker.Stores{Projects: d, Repositories: d, Issues: d, Users: d}
}

func (d *DB) FindByIdentifier(ctx context.Context, identifier string) (*tracker.Project, error) {
	var p tracker.Project
	err := d.pool.QueryRow(ctx,
		`SELECT id, identifier FROM projects WHERE LOWER(identifier) = LOWER($1)`,
		identifier,
	).Scan(&p.ID, &p.Identifier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &p, nil
}

func (d *DB) RepositoriesOf(ctx context.Context, projectID int64) ([]tracker.Repository, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, project_id, root_path FROM repositories WHERE project_id = $1 ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer rows.Close()

	var repos []tracker.Repository
	for rows.Next() {
		var r tracker.Repository
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.RootPath); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (d *DB) IngestChangesets(ctx context.Context, repositoryID int64) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE repositories SET last_ingested_at = now() WHERE id = $1`,
		repositoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to record changeset ingestion: %w", err)
	}
	return nil
}

const issueColumns = `i.id, i.project_id, i.tracker, i.status_id, i.subject,
	i.description, COALESCE(i.parent_id, 0), i.author_id, s.is_closed, i.created_on`

func (d *DB) Search(ctx context.Context, filter tracker.IssueFilter) ([]tracker.Issue, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ProjectID != 0 {
		where = append(where, "i.project_id = "+arg(filter.ProjectID))
	}
	if filter.ParentID != 0 {
		where = append(where, "i.parent_id = "+arg(filter.ParentID))
	}
	if filter.DescriptionContains != "" {
		where = append(where, "POSITION("+arg(filter.DescriptionContains)+" IN i.description) > 0")
	}
	if filter.OpenOnly {
		where = append(where, "NOT s.is_closed")
	}

	query := `SELECT ` + issueColumns + `
		FROM issues i JOIN issue_statuses s ON s.id = i.status_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY i.created_on, i.id`

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	defer rows.Close()

	var issues []tracker.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (d *DB) FindByID(ctx context.Context, id int64) (*tracker.Issue, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT `+issueColumns+`
		 FROM issues i JOIN issue_statuses s ON s.id = i.status_id
		 WHERE i.id = $1`,
		id,
	)
	issue, err := scanIssue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (d *DB) Create(ctx context.Context, issue tracker.NewIssue) (*tracker.Issue, error) {
	var parentID any
	if issue.ParentID != 0 {
		parentID = issue.ParentID
	}
	var created tracker.Issue
	err := d.pool.QueryRow(ctx,
		`INSERT INTO issues (project_id, tracker, status_id, subject, description, parent_id, author_id)
		 VALUES ($1, $2,
		         (SELECT id FROM issue_statuses WHERE NOT is_closed ORDER BY id LIMIT 1),
		         $3, $4, $5, $6)
		 RETURNING id, status_id, created_on`,
		issue.ProjectID, issue.Tracker, issue.Subject, issue.Description, parentID, issue.AuthorID,
	).Scan(&created.ID, &created.StatusID, &created.CreatedOn)
	if err != nil {
		return nil, fmt.Errorf("failed to insert issue: %w", err)
	}
	created.ProjectID = issue.ProjectID
	created.Tracker = issue.Tracker
	created.Subject = issue.Subject
	created.Description = issue.Description
	created.ParentID = issue.ParentID
	created.AuthorID = issue.AuthorID
	return &created, nil
}

func (d *DB) UpdateDescription(ctx context.Context, issueID int64, description string) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE issues SET description = $2 WHERE id = $1`,
		issueID, description,
	)
	if err != nil {
		return fmt.Errorf("failed to update issue description: %w", err)
	}
	return nil
}

func (d *DB) AppendJournal(ctx context.Context, issueID, authorID int64, notes string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO journals (issue_id, user_id, notes) VALUES ($1, $2, $3)`,
		issueID, authorID, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal: %w", err)
	}
	return nil
}

func (d *DB) SetStatus(ctx context.Context, issueID, statusID int64) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE issues SET status_id = $2 WHERE id = $1`,
		issueID, statusID,
	)
	if err != nil {
		return fmt.Errorf("failed to set issue status: %w", err)
	}
	return nil
}

func (d *DB) FindByLogin(ctx context.Context, login string) (*tracker.User, error) {
	return d.findUser(ctx, `SELECT id, login, mail, name FROM users WHERE login = $1`, login)
}

func (d *DB) FindByEmail(ctx context.Context, mail string) (*tracker.User, error) {
	return d.findUser(ctx, `SELECT id, login, mail, name FROM users WHERE mail = $1`, mail)
}

func (d *DB) findUser(ctx context.Context, query, key string) (*tracker.User, error) {
	var u tracker.User
	err := d.pool.QueryRow(ctx, query, key).Scan(&u.ID, &u.Login, &u.Mail, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

func scanIssue(row pgx.Row) (tracker.Issue, error) {
	var issue tracker.Issue
	err := row.Scan(
		&issue.ID, &issue.ProjectID, &issue.Tracker, &issue.StatusID, &issue.Subject,
		&issue.Description, &issue.ParentID, &issue.AuthorID, &issue.Closed, &issue.CreatedOn,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return issue, fmt.Errorf("failed to scan issue: %w", err)
	}
	return issue, err
}
