package saga

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopflow/internal/pkg/logger"
	"shopflow/internal/pkg/metrics"
)

// Step 是一个 (动作, 补偿) 对。Compensate 可以为空，表示该步骤无需回滚。
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga 顺序执行步骤；某一步失败时，按后进先出顺序执行已完成步骤的补偿。
// 补偿是尽力而为的：单个补偿失败只记录，不会中断后续补偿。
type Saga struct {
	name   string
	steps  []Step
	tracer trace.Tracer
}

func New(name string, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps, tracer: otel.Tracer("order-service")}
}

// Add 追加步骤，支持链式调用
func (s *Saga) Add(steps ...Step) *Saga {
	s.steps = append(s.steps, steps...)
	return s
}

// ExecutionError 描述失败的步骤以及补偿阶段的结果
type ExecutionError struct {
	Saga             string
	Step             string
	Err              error
	Compensated      []string
	CompensationErrs map[string]error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("saga %s failed at step %s: %v", e.Saga, e.Step, e.Err)
	if len(e.CompensationErrs) > 0 {
		msg += fmt.Sprintf(" (%d compensation(s) failed)", len(e.CompensationErrs))
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Execute 运行整个 saga，失败时返回 *ExecutionError，errors.Is 可以穿透到原始错误
func (s *Saga) Execute(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "saga."+s.name, trace.WithAttributes(attribute.Int("saga.steps", len(s.steps))))
	defer span.End()

	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := s.runStep(ctx, step); err != nil {
			execErr := &ExecutionError{Saga: s.name, Step: step.Name, Err: err}
			s.unwind(ctx, completed, execErr)
			span.RecordError(err)
			span.SetStatus(codes.Error, execErr.Error())
			metrics.SagaOutcomes.WithLabelValues(s.name, metrics.ResultFailure).Inc()
			return execErr
		}
		completed = append(completed, step)
	}
	metrics.SagaOutcomes.WithLabelValues(s.name, metrics.ResultSuccess).Inc()
	return nil
}

func (s *Saga) runStep(ctx context.Context, step Step) error {
	ctx, span := s.tracer.Start(ctx, "saga.step."+step.Name)
	defer span.End()
	if err := step.Action(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// unwind 即使原请求已取消也要完成补偿
func (s *Saga) unwind(ctx context.Context, completed []Step, execErr *ExecutionError) {
	cctx := context.WithoutCancel(ctx)
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := s.compensate(cctx, step); err != nil {
			if execErr.CompensationErrs == nil {
				execErr.CompensationErrs = map[string]error{}
			}
			execErr.CompensationErrs[step.Name] = err
			metrics.SagaCompensations.WithLabelValues(stepKind(step.Name), metrics.ResultFailure).Inc()
			logger.Ctx(ctx).Error().Err(err).Str("saga", s.name).Str("step", step.Name).Msg("🛑 compensation failed")
			continue
		}
		execErr.Compensated = append(execErr.Compensated, step.Name)
		metrics.SagaCompensations.WithLabelValues(stepKind(step.Name), metrics.ResultSuccess).Inc()
	}
	logger.Ctx(ctx).Warn().
		Str("saga", s.name).
		Str("failed_step", execErr.Step).
		Strs("compensated", execErr.Compensated).
		Msg("saga aborted")
}

func (s *Saga) compensate(ctx context.Context, step Step) (err error) {
	ctx, span := s.tracer.Start(ctx, "saga.compensate."+step.Name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("compensation panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	return step.Compensate(ctx)
}

// stepKind 去掉步骤名中冒号后的实例部分，避免指标标签按商品膨胀
func stepKind(name string) string {
	if i := strings.IndexByte(name, ':'); i > 0 {
		return name[:i]
	}
	return name
}
