package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const pgForeignKeyViolation = "23503"

const setCallerSQL = `SELECT set_config('request.jwt.claim.sub', $1, true)`

// Querier é o subconjunto de pgx usado pelos repositórios
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner abre transações; *pgxpool.Pool satisfaz
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Gateway executa cada chamada ao banco em sua própria transação curta.
// Não há transação entre chamadas: quem precisa de várias etapas usa UnitOfWork.
type Gateway struct {
	pool TxBeginner
}

// NewGateway cria uma nova instância de Gateway
func NewGateway(pool TxBeginner) *Gateway {
	return &Gateway{pool: pool}
}

// Run abre a transação da chamada, aplica a credencial do chamador e executa fn
func (g *Gateway) Run(ctx context.Context, access Access, op string, fn func(q Querier) error) error {
	ctx, span := otel.Tracer("sales-store").Start(ctx, "store."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.Bool("caller_scoped", access.UserID != ""),
	)

	err := g.run(ctx, access, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (g *Gateway) run(ctx context.Context, access Access, fn func(q Querier) error) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Row level security no banco enxerga o chamador através deste claim
	if access.UserID != "" {
		if _, err := tx.Exec(ctx, setCallerSQL, access.UserID); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to apply caller credential: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
