package goal

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
)

// ExprEnv is what a predicate sees about the candidate cell.
type ExprEnv struct {
	X      int64  `expr:"x"`
	Y      int64  `expr:"y"`
	Z      int64  `expr:"z"`
	Domain string `expr:"domain"`

	Passable  bool    `expr:"passable"`
	Standable bool    `expr:"standable"`
	Water     bool    `expr:"water"`
	Climbable bool    `expr:"climbable"`
	Portal    bool    `expr:"portal"`
	Hardness  float64 `expr:"hardness"`
	// Sky: nothing solid in the next skyProbe cells above.
	Sky bool `expr:"sky"`
}

const skyProbe = 32

// Expr is a compiled boolean predicate such as `standable && y >= 64`.
type Expr struct {
	source  string
	program *vm.Program
	usesSky bool
}

func CompileExpr(source string) (*Expr, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("goal expression is empty")
	}
	program, err := expr.Compile(source,
		expr.Env(ExprEnv{}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile goal %q: %w", source, err)
	}
	return &Expr{source: source, program: program, usesSky: strings.Contains(source, "sky")}, nil
}

func (e *Expr) Source() string { return e.source }

func (e *Expr) Reached(c model.Cell, o terrain.Oracle, f flags.Set) (bool, error) {
	here, err := o.Query(c, f)
	if err != nil {
		return false, err
	}
	below, err := o.Query(c.Down(), f)
	if err != nil {
		return false, err
	}
	env := ExprEnv{
		X:         c.X,
		Y:         c.Y,
		Z:         c.Z,
		Domain:    string(c.Domain),
		Passable:  here.Passable,
		Standable: here.StandIn && below.StandOn,
		Water:     here.Water,
		Climbable: here.Climbable,
		Portal:    here.PortalLike,
		Hardness:  here.Hardness,
	}
	if e.usesSky {
		env.Sky = true
		for dy := int64(1); dy <= skyProbe; dy++ {
			p, err := o.Query(c.Offset(0, dy, 0), f)
			if err != nil {
				return false, err
			}
			if !p.Passable {
				// The barrier above a domain's ceiling counts as sky.
				env.Sky = !p.StandOn && !p.Breakable()
				break
			}
		}
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate goal %q at %s: %w", e.source, c, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("goal %q returned %T", e.source, out)
	}
	return b, nil
}

func (e *Expr) Targets() []model.Cell { return nil }
func (e *Expr) Radius() float64       { return 0 }
func (e *Expr) Key() string           { return "expr:" + e.source }
