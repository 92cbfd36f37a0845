package repository

import (
	"context"
	"time"

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

// Token is a pending confirmation for one student on one proposed team.
// The row is deleted in bulk with its siblings once the team activates.
type Token struct {
	ID         string    `db:"id"`
	TeamID     int64     `db:"team_id"`
	StudentID  int64     `db:"student_id"`
	ExpiryDate time.Time `db:"expiry_date"`
	Confirmed  bool      `db:"confirmed"`
	Rejected   bool      `db:"rejected"`
}

type TokenPatch struct {
	ID        string `db:"id"`
	Confirmed *bool  `db:"confirmed"`
	Rejected  *bool  `db:"rejected"`
}

type TokenRepository interface {
	Create(ctx context.Context, token *Token) error
	Get(ctx context.Context, id string) (*Token, error)
	// GetForUpdate locks the token row so concurrent confirm/reject of
	// the same token are mutually exclusive.
	GetForUpdate(ctx context.Context, id string) (*Token, error)
	GetByTeam(ctx context.Context, teamID int64) ([]*Token, error)
	GetByStudentAndTeam(ctx context.Context, studentID, teamID int64) ([]*Token, error)
	Patch(ctx context.Context, patch *TokenPatch) (*Token, error)
	DeleteByTeam(ctx context.Context, teamID int64) error
}

type pgxTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &pgxTokenRepository{pool: pool}
}

func (p *pgxTokenRepository) Create(ctx context.Context, token *Token) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("tokens", "id", "team_id", "student_id", "expiry_date", "confirmed", "rejected"),
		im.Values(psql.Arg(token.ID), psql.Arg(token.TeamID), psql.Arg(token.StudentID),
			psql.Arg(token.ExpiryDate), psql.Arg(token.Confirmed), psql.Arg(token.Rejected)),
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

func (p *pgxTokenRepository) Get(ctx context.Context, id string) (*Token, error) {
	return p.get(ctx, id, false)
}

func (p *pgxTokenRepository) GetForUpdate(ctx context.Context, id string) (*Token, error) {
	return p.get(ctx, id, true)
}

func (p *pgxTokenRepository) get(ctx context.Context, id string, forUpdate bool) (*Token, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "team_id", "student_id", "expiry_date", "confirmed", "rejected"),
		sm.From("tokens"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	if forUpdate {
		q.Apply(sm.ForUpdate("tokens"))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	token := &Token{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&token.ID,
		&token.TeamID,
		&token.StudentID,
		&token.ExpiryDate,
		&token.Confirmed,
		&token.Rejected,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return token, nil
}

func (p *pgxTokenRepository) GetByTeam(ctx context.Context, teamID int64) ([]*Token, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "team_id", "student_id", "expiry_date", "confirmed", "rejected"),
		sm.From("tokens"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	return p.selectTokens(ctx, e, q)
}

func (p *pgxTokenRepository) GetByStudentAndTeam(ctx context.Context, studentID, teamID int64) ([]*Token, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "team_id", "student_id", "expiry_date", "confirmed", "rejected"),
		sm.From("tokens"),
		sm.Where(
			psql.Quote("student_id").EQ(psql.Arg(studentID)).
				And(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		),
	)

	return p.selectTokens(ctx, e, q)
}

func (p *pgxTokenRepository) Patch(ctx context.Context, patch *TokenPatch) (*Token, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 2)

	if patch.Confirmed != nil {
		sets = append(sets, um.SetCol("confirmed").ToArg(*patch.Confirmed))
	}
	if patch.Rejected != nil {
		sets = append(sets, um.SetCol("rejected").ToArg(*patch.Rejected))
	}

	q := psql.Update(
		um.Table("tokens"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning("id", "team_id", "student_id", "expiry_date", "confirmed", "rejected"),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	token := &Token{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&token.ID,
		&token.TeamID,
		&token.StudentID,
		&token.ExpiryDate,
		&token.Confirmed,
		&token.Rejected,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return token, nil
}

func (p *pgxTokenRepository) DeleteByTeam(ctx context.Context, teamID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("tokens"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTokenRepository) selectTokens(ctx context.Context, e db.Executor, q bob.BaseQuery[*dialect.SelectQuery]) ([]*Token, error) {
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Token, error) {
		token := &Token{}
		if err = row.Scan(&token.ID, &token.TeamID, &token.StudentID,
			&token.ExpiryDate, &token.Confirmed, &token.Rejected); err != nil {
			return nil, err
		}
		return token, nil
	})
}
