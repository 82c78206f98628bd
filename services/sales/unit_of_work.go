package main

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Step é uma etapa com sua compensação. Undo pode ser nil quando a etapa
// não deixa efeito a desfazer.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// UnitOfWork executa etapas em ordem e, na primeira falha, compensa as
// etapas já concluídas em ordem reversa. Falhas de compensação são
// registradas e descartadas; quem chama recebe o erro original.
type UnitOfWork struct {
	ID    string
	name  string
	steps []Step

	compensations metric.Int64Counter
}

// NewUnitOfWork cria uma nova unidade de trabalho
func NewUnitOfWork(name string) *UnitOfWork {
	counter, _ := otel.Meter("sales-service").Int64Counter("unit_of_work_compensations",
		metric.WithDescription("Compensating actions executed after a failed step"))

	return &UnitOfWork{
		ID:            uuid.New().String(),
		name:          name,
		compensations: counter,
	}
}

// Add registra uma etapa e retorna a própria unidade para encadear
func (u *UnitOfWork) Add(name string, do, undo func(ctx context.Context) error) *UnitOfWork {
	u.steps = append(u.steps, Step{Name: name, Do: do, Undo: undo})
	return u
}

// Execute roda as etapas em sequência, sem paralelismo
func (u *UnitOfWork) Execute(ctx context.Context) error {
	ctx, span := otel.Tracer("sales-service").Start(ctx, "uow."+u.name)
	defer span.End()
	span.SetAttributes(
		attribute.String("uow.id", u.ID),
		attribute.Int("uow.steps", len(u.steps)),
	)

	zap.S().Infof("🚀 Starting %s | UoW: %s | steps: %d", u.name, u.ID, len(u.steps))

	for i, step := range u.steps {
		if err := step.Do(ctx); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("uow.failed_step", step.Name))
			zap.S().Warnf("❌ %s failed at step %q | UoW: %s | %v", u.name, step.Name, u.ID, err)

			u.compensate(ctx, i)
			return err
		}
	}

	zap.S().Infof("✅ %s completed | UoW: %s", u.name, u.ID)
	return nil
}

// compensate desfaz as etapas [0, failed) da mais recente para a mais antiga
func (u *UnitOfWork) compensate(ctx context.Context, failed int) {
	// Um cancelamento do chamador não pode interromper a compensação
	ctx = context.WithoutCancel(ctx)

	for i := failed - 1; i >= 0; i-- {
		step := u.steps[i]
		if step.Undo == nil {
			continue
		}

		u.compensations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("uow", u.name),
			attribute.String("step", step.Name),
		))

		if err := step.Undo(ctx); err != nil {
			zap.S().Errorf("⚠️ [COMPENSATE] %s step %q failed | UoW: %s | %v", u.name, step.Name, u.ID, err)
			continue
		}
		zap.S().Infof("♻️  [COMPENSATE] %s step %q undone | UoW: %s", u.name, step.Name, u.ID)
	}
}
