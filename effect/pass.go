package effect

import (
	"context"
	"fmt"
	"strings"
)

// Pass is a group of effects drawn by one stage: either one or more
// matrix transformations, or a single general effect.
type Pass struct {
	Matrices []MatrixTransformation
	General  *GeneralEffect
}

func (p Pass) IsMatrix() bool {
	return p.General == nil
}

func (p Pass) String() string {
	if p.General != nil {
		return p.General.Name
	}
	var names []string
	for _, m := range p.Matrices {
		names = append(names, m.String())
	}
	return "[" + strings.Join(names, ",") + "]"
}

func (p Pass) NewStage(ctx context.Context) (Stage, error) {
	if p.General == nil {
		return NewMatrixStage(p.Matrices...), nil
	}
	stage, err := p.General.NewStage(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create the stage of %s: %w", p.General.Name, err)
	}
	return stage, nil
}

// Coalesce groups consecutive matrix effects into single passes.
func Coalesce(effects []Effect) []Pass {
	var passes []Pass
	for _, e := range effects {
		switch e := e.(type) {
		case MatrixEffect:
			if n := len(passes); n > 0 && passes[n-1].IsMatrix() {
				passes[n-1].Matrices = append(passes[n-1].Matrices, e.Transformation)
				continue
			}
			passes = append(passes, Pass{Matrices: []MatrixTransformation{e.Transformation}})
		case GeneralEffect:
			g := e
			passes = append(passes, Pass{General: &g})
		default:
			panic(fmt.Errorf("unexpected effect type %T", e))
		}
	}
	return passes
}

// OnePassPerEffect returns a pass for every effect.
func OnePassPerEffect(effects []Effect) []Pass {
	var passes []Pass
	for _, e := range effects {
		passes = append(passes, Coalesce([]Effect{e})...)
	}
	return passes
}

// HasGeneral returns true if any effect needs a general stage.
func HasGeneral(effects []Effect) bool {
	for _, e := range effects {
		if _, ok := e.(GeneralEffect); ok {
			return true
		}
	}
	return false
}
