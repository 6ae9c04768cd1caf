// Package rule 用 CEL 表达式实现订单取消策略。
package rule

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"shopflow/internal/service/order/domain"
)

// DefaultCancellationRules 顾客只能取消 PENDING 订单，后台角色在发货前都可以取消
var DefaultCancellationRules = map[string]string{
	string(domain.RoleCustomer): `status == "PENDING"`,
	string(domain.RoleStaff):    `status in ["PENDING", "CONFIRMED", "PROCESSING"]`,
	string(domain.RoleAdmin):    `status in ["PENDING", "CONFIRMED", "PROCESSING"]`,
}

// CELCancellationPolicy 实现了 port.CancellationPolicy。
// 每个角色一条布尔表达式，可用变量为 status 与 role。
type CELCancellationPolicy struct {
	programs map[domain.Role]cel.Program
}

// NewCELCancellationPolicy 编译 DefaultCancellationRules 与 overrides 合并后的规则，
// overrides 中同名角色覆盖默认值。任一表达式编译失败或结果不是 bool 都返回错误。
func NewCELCancellationPolicy(overrides map[string]string) (*CELCancellationPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("role", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	rules := make(map[string]string, len(DefaultCancellationRules)+len(overrides))
	for role, expr := range DefaultCancellationRules {
		rules[role] = expr
	}
	for role, expr := range overrides {
		rules[strings.ToUpper(role)] = expr
	}

	p := &CELCancellationPolicy{programs: make(map[domain.Role]cel.Program, len(rules))}
	for role, expr := range rules {
		ast, iss := env.Compile(expr)
		if iss.Err() != nil {
			return nil, errors.Wrapf(iss.Err(), "compile cancellation rule for %s", role)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, errors.Errorf("cancellation rule for %s must be boolean, got %s", role, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrapf(err, "build cancellation rule for %s", role)
		}
		p.programs[domain.Role(role)] = prg
	}
	return p, nil
}

// CanCancel 没有规则的角色一律不允许取消
func (p *CELCancellationPolicy) CanCancel(role domain.Role, status domain.State) (bool, error) {
	prg, ok := p.programs[role]
	if !ok {
		return false, nil
	}
	out, _, err := prg.Eval(map[string]any{
		"status": string(status),
		"role":   string(role),
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate cancellation rule for %s", role)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("cancellation rule for %s returned %T", role, out.Value())
	}
	return allowed, nil
}
