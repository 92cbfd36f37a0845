package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/dmoroni/uniteams/internal/db"
)

type Course struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Enabled     bool   `db:"enabled"`
	MinTeamSize int    `db:"min_team_size"`
	MaxTeamSize int    `db:"max_team_size"`
}

type CourseRepository interface {
	Create(ctx context.Context, course *Course) error
	Get(ctx context.Context, id string) (*Course, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Enroll(ctx context.Context, courseID string, studentID int64) error
	IsEnrolled(ctx context.Context, studentID int64, courseID string) (bool, error)
	GetEnrolledStudents(ctx context.Context, courseID string) ([]*Student, error)
	GetEnrolledWithoutTeam(ctx context.Context, courseID string) ([]*Student, error)
	GetCoursesForStudent(ctx context.Context, studentID int64) ([]*Course, error)
}

type pgxCourseRepository struct {
	pool *pgxpool.Pool
}

func NewPgxCourseRepository(pool *pgxpool.Pool) CourseRepository {
	return &pgxCourseRepository{pool: pool}
}

func (p *pgxCourseRepository) Create(ctx context.Context, course *Course) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("courses", "id", "name", "enabled", "min_team_size", "max_team_size"),
		im.Values(psql.Arg(course.ID), psql.Arg(course.Name), psql.Arg(course.Enabled),
			psql.Arg(course.MinTeamSize), psql.Arg(course.MaxTeamSize)),
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

func (p *pgxCourseRepository) Get(ctx context.Context, id string) (*Course, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "enabled", "min_team_size", "max_team_size"),
		sm.From("courses"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	course := &Course{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&course.ID,
		&course.Name,
		&course.Enabled,
		&course.MinTeamSize,
		&course.MaxTeamSize,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return course, nil
}

func (p *pgxCourseRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("courses"),
		um.SetCol("enabled").ToArg(enabled),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
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

func (p *pgxCourseRepository) Enroll(ctx context.Context, courseID string, studentID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("enrollments", "course_id", "student_id"),
		im.Values(psql.Arg(courseID), psql.Arg(studentID)),
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

func (p *pgxCourseRepository) IsEnrolled(ctx context.Context, studentID int64, courseID string) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("student_id"),
		sm.From("enrollments"),
		sm.Where(
			psql.Quote("course_id").EQ(psql.Arg(courseID)).
				And(psql.Quote("student_id").EQ(psql.Arg(studentID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var id int64
	if err = e.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *pgxCourseRepository) GetEnrolledStudents(ctx context.Context, courseID string) ([]*Student, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "surname", "email"),
		sm.From("students"),
		sm.Where(psql.Quote("id").In(
			psql.Select(
				sm.Columns("student_id"),
				sm.From("enrollments"),
				sm.Where(psql.Quote("course_id").EQ(psql.Arg(courseID))),
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

	return pgx.CollectRows(rows, scanStudent)
}

func (p *pgxCourseRepository) GetEnrolledWithoutTeam(ctx context.Context, courseID string) ([]*Student, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "surname", "email"),
		sm.From("students"),
		sm.Where(
			psql.Quote("id").In(
				psql.Select(
					sm.Columns("student_id"),
					sm.From("enrollments"),
					sm.Where(psql.Quote("course_id").EQ(psql.Arg(courseID))),
				),
			).And(psql.Quote("id").NotIn(
				psql.Select(
					sm.Columns("student_id"),
					sm.From("team_members"),
					sm.Where(psql.Quote("team_id").In(
						psql.Select(
							sm.Columns("id"),
							sm.From("teams"),
							sm.Where(psql.Quote("course_id").EQ(psql.Arg(courseID))),
						),
					)),
				),
			)),
		),
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

func (p *pgxCourseRepository) GetCoursesForStudent(ctx context.Context, studentID int64) ([]*Course, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "enabled", "min_team_size", "max_team_size"),
		sm.From("courses"),
		sm.Where(psql.Quote("id").In(
			psql.Select(
				sm.Columns("course_id"),
				sm.From("enrollments"),
				sm.Where(psql.Quote("student_id").EQ(psql.Arg(studentID))),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Course, error) {
		course := &Course{}
		if err = row.Scan(&course.ID, &course.Name, &course.Enabled,
			&course.MinTeamSize, &course.MaxTeamSize); err != nil {
			return nil, err
		}
		return course, nil
	})
}
