package search

import (
	"fmt"

	"github.com/samber/lo"

	"stratbench/internal/domain"
	"stratbench/internal/strategy"
)

// Range is an inclusive run of window lengths: Min, Min+Step, ... <= Max.
type Range struct {
	Min  int
	Max  int
	Step int
}

func (r Range) validate(name string) error {
	if r.Min <= 0 {
		return fmt.Errorf("%w: %s min %d must be positive", strategy.ErrInvalidParameters, name, r.Min)
	}
	if r.Step <= 0 {
		return fmt.Errorf("%w: %s step %d must be positive", strategy.ErrInvalidParameters, name, r.Step)
	}
	if r.Max < r.Min {
		return fmt.Errorf("%w: %s max %d below min %d", strategy.ErrInvalidParameters, name, r.Max, r.Min)
	}
	return nil
}

func (r Range) values() []int {
	return lo.RangeWithSteps(r.Min, r.Max+1, r.Step)
}

// Bounds describes the search grid of one moving-average kind.
type Bounds struct {
	Short Range
	Long  Range
	// MinSeparation is the smallest allowed long-short gap.
	MinSeparation int
}

// Cells enumerates every admissible window, long lengths outer and short
// lengths inner. The position of a window in this slice is its enumeration
// index, which breaks ties between equal returns.
func (b Bounds) Cells() []domain.Window {
	shorts := b.Short.values()
	return lo.FlatMap(b.Long.values(), func(long int, _ int) []domain.Window {
		return lo.FilterMap(shorts, func(short int, _ int) (domain.Window, bool) {
			return domain.Window{Short: short, Long: long}, short < long && long-short >= b.MinSeparation
		})
	})
}

// Validate checks the grid once for a series of n bars so that no cell can
// fail window validation during the search.
func (b Bounds) Validate(n int) error {
	if err := b.Short.validate("short"); err != nil {
		return err
	}
	if err := b.Long.validate("long"); err != nil {
		return err
	}
	if b.MinSeparation < 0 {
		return fmt.Errorf("%w: negative min separation %d", strategy.ErrInvalidParameters, b.MinSeparation)
	}
	if b.Long.Max > n {
		return fmt.Errorf("%w: long max %d exceeds %d bars", strategy.ErrInvalidParameters, b.Long.Max, n)
	}
	if len(b.Cells()) == 0 {
		return fmt.Errorf("%w: bounds contain no window with short < long", strategy.ErrInvalidParameters)
	}
	return nil
}
