package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/dmoroni/uniteams/internal/db"
)

type Team struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	CourseID string `db:"course_id"`
	Active   bool   `db:"active"`
	Disabled bool   `db:"disabled"`
}

type TeamPatch struct {
	ID       int64 `db:"id"`
	Active   *bool `db:"active"`
	Disabled *bool `db:"disabled"`
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) (int64, error)
	Get(ctx context.Context, id int64) (*Team, error)
	// GetForUpdate locks the team row for the rest of the transaction.
	// Confirm/reject serialize on this lock.
	GetForUpdate(ctx context.Context, id int64) (*Team, error)
	GetFirstByNameAndCourse(ctx context.Context, name, courseID string) (*Team, error)
	Patch(ctx context.Context, patch *TeamPatch) (*Team, error)
	AddMember(ctx context.Context, teamID, studentID int64) error
	RemoveMembers(ctx context.Context, teamID int64) error
	GetMembers(ctx context.Context, teamID int64) ([]*Student, error)
	GetMemberIDs(ctx context.Context, teamID int64) ([]int64, error)
	GetTeamsForStudent(ctx context.Context, studentID int64, courseID string) ([]*Team, error)
	GetTeamsForCourse(ctx context.Context, courseID string) ([]*Team, error)
	// ListActiveMemberIDs returns the ids of every student belonging to
	// an active, non-disabled team of the course.
	ListActiveMemberIDs(ctx context.Context, courseID string) ([]int64, error)
	// ListInactiveSiblings returns the still-inactive, non-disabled teams
	// of the course sharing at least one member with the given team.
	ListInactiveSiblings(ctx context.Context, courseID string, teamID int64) ([]*Team, error)
	// ListInactiveDisabled returns dead proposals; empty courseID means
	// all courses.
	ListInactiveDisabled(ctx context.Context, courseID string) ([]*Team, error)
	Delete(ctx context.Context, id int64) error
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) (int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("teams", "name", "course_id", "active", "disabled"),
		im.Values(psql.Arg(team.Name), psql.Arg(team.CourseID), psql.Arg(team.Active), psql.Arg(team.Disabled)),
		im.Returning("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	var id int64
	err = e.QueryRow(ctx, sql, args...).Scan(&id)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return 0, ErrAlreadyExists
	}
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (p *pgxTeamRepository) Get(ctx context.Context, id int64) (*Team, error) {
	return p.get(ctx, id, false)
}

func (p *pgxTeamRepository) GetForUpdate(ctx context.Context, id int64) (*Team, error) {
	return p.get(ctx, id, true)
}

func (p *pgxTeamRepository) get(ctx context.Context, id int64, forUpdate bool) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "course_id", "active", "disabled"),
		sm.From("teams"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	if forUpdate {
		q.Apply(sm.ForUpdate("teams"))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team := &Team{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&team.ID,
		&team.Name,
		&team.CourseID,
		&team.Active,
		&team.Disabled,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) GetFirstByNameAndCourse(ctx context.Context, name, courseID string) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "course_id", "active", "disabled"),
		sm.From("teams"),
		sm.Where(
			psql.Quote("name").EQ(psql.Arg(name)).
				And(psql.Quote("course_id").EQ(psql.Arg(courseID))),
		),
		sm.Limit(1),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team := &Team{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&team.ID,
		&team.Name,
		&team.CourseID,
		&team.Active,
		&team.Disabled,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) Patch(ctx context.Context, patch *TeamPatch) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 2)

	if patch.Active != nil {
		sets = append(sets, um.SetCol("active").ToArg(*patch.Active))
	}
	if patch.Disabled != nil {
		sets = append(sets, um.SetCol("disabled").ToArg(*patch.Disabled))
	}

	q := psql.Update(
		um.Table("teams"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning("id", "name", "course_id", "active", "disabled"),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team := &Team{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&team.ID,
		&team.Name,
		&team.CourseID,
		&team.Active,
		&team.Disabled,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return team, nil
}

func (p *pgxTeamRepository) AddMember(ctx context.Context, teamID, studentID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_members", "team_id", "student_id"),
		im.Values(psql.Arg(teamID), psql.Arg(studentID)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}

	return err
}

func (p *pgxTeamRepository) RemoveMembers(ctx context.Context, teamID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_members"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTeamRepository) GetMembers(ctx context.Context, teamID int64) ([]*Student, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "surname", "email"),
		sm.From("students"),
		sm.Where(psql.Quote("id").In(
			psql.Select(
				sm.Columns("student_id"),
				sm.From("team_members"),
				sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
			),
		)),
		sm.OrderBy("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, scanStudent)
}

func (p *pgxTeamRepository) GetMemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("student_id"),
		sm.From("team_members"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (int64, error) {
		var id int64
		if err = row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	})
}

func (p *pgxTeamRepository) GetTeamsForStudent(ctx context.Context, studentID int64, courseID string) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "course_id", "active", "disabled"),
		sm.From("teams"),
		sm.Where(
			psql.Quote("course_id").EQ(psql.Arg(courseID)).
				And(psql.Quote("id").In(
					psql.Select(
						sm.Columns("team_id"),
						sm.From("team_members"),
						sm.Where(psql.Quote("student_id").EQ(psql.Arg(studentID))),
					),
				)),
		),
		sm.OrderBy("id"),
	)

	return p.selectTeams(ctx, e, q)
}

func (p *pgxTeamRepository) GetTeamsForCourse(ctx context.Context, courseID string) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "course_id", "active", "disabled"),
		sm.From("teams"),
		sm.Where(psql.Quote("course_id").EQ(psql.Arg(courseID))),
		sm.OrderBy("id"),
	)

	return p.selectTeams(ctx, e, q)
}

func (p *pgxTeamRepository) ListActiveMemberIDs(ctx context.Context, courseID string) ([]int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Distinct(),
		sm.Columns("student_id"),
		sm.From("team_members"),
		sm.Where(psql.Quote("team_id").In(
			psql.Select(
				sm.Columns("id"),
				sm.From("teams"),
				sm.Where(
					psql.Quote("course_id").EQ(psql.Arg(courseID)).
						And(psql.Quote("active").EQ(psql.Arg(true))).
						And(psql.Quote("disabled").EQ(psql.Arg(false))),
				),
			),
		)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (int64, error) {
		var id int64
		if err = row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	})
}

func (p *pgxTeamRepository) ListInactiveSiblings(ctx context.Context, courseID string, teamID int64) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "course_id", "active", "disabled"),
		sm.From("teams"),
		sm.Where(
			psql.Quote("course_id").EQ(psql.Arg(courseID)).
				And(psql.Quote("active").EQ(psql.Arg(false))).
				And(psql.Quote("disabled").EQ(psql.Arg(false))).
				And(psql.Quote("id").NE(psql.Arg(teamID))).
				And(psql.Quote("id").In(
					psql.Select(
						sm.Columns("team_id"),
						sm.From("team_members"),
						sm.Where(psql.Quote("student_id").In(
							psql.Select(
								sm.Columns("student_id"),
								sm.From("team_members"),
								sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
							),
						)),
					),
				)),
		),
		sm.OrderBy("id"),
	)

	return p.selectTeams(ctx, e, q)
}

func (p *pgxTeamRepository) ListInactiveDisabled(ctx context.Context, courseID string) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "course_id", "active", "disabled"),
		sm.From("teams"),
		sm.Where(
			psql.Quote("active").EQ(psql.Arg(false)).
				And(psql.Quote("disabled").EQ(psql.Arg(true))),
		),
		sm.OrderBy("id"),
	)
	if courseID != "" {
		q.Apply(sm.Where(psql.Quote("course_id").EQ(psql.Arg(courseID))))
	}

	return p.selectTeams(ctx, e, q)
}

func (p *pgxTeamRepository) Delete(ctx context.Context, id int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("teams"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxTeamRepository) selectTeams(ctx context.Context, e db.Executor, q bob.BaseQuery[*dialect.SelectQuery]) ([]*Team, error) {
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Team, error) {
		team := &Team{}
		if err = row.Scan(&team.ID, &team.Name, &team.CourseID, &team.Active, &team.Disabled); err != nil {
			return nil, err
		}
		return team, nil
	})
}
