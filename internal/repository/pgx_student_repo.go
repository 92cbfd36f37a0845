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

	"github.com/dmoroni/uniteams/internal/db"
)

type Student struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Surname string `db:"surname"`
	Email   string `db:"email"`
}

type StudentRepository interface {
	Create(ctx context.Context, student *Student) error
	Get(ctx context.Context, id int64) (*Student, error)
}

type pgxStudentRepository struct {
	pool *pgxpool.Pool
}

func NewPgxStudentRepository(pool *pgxpool.Pool) StudentRepository {
	return &pgxStudentRepository{pool: pool}
}

func (p *pgxStudentRepository) Create(ctx context.Context, student *Student) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("students", "id", "name", "surname", "email"),
		im.Values(psql.Arg(student.ID), psql.Arg(student.Name), psql.Arg(student.Surname), psql.Arg(student.Email)),
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

func (p *pgxStudentRepository) Get(ctx context.Context, id int64) (*Student, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "surname", "email"),
		sm.From("students"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	student := &Student{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&student.ID,
		&student.Name,
		&student.Surname,
		&student.Email,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return student, nil
}

func scanStudent(row pgx.CollectableRow) (*Student, error) {
	student := &Student{}
	if err := row.Scan(&student.ID, &student.Name, &student.Surname, &student.Email); err != nil {
		return nil, err
	}
	return student, nil
}
