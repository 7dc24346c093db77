package listing

import (
	"context"

	"github.com/yycdata/mlxsweep/internal/domain"
)

// Sink mirrors the persistence contract of the sweep engine.
type Sink interface {
	Save(ctx context.Context, area string, year int, records []domain.Record) error
}

// FanOut forwards every save to each underlying sink in order and stops
// at the first failure.
type FanOut struct {
	sinks []Sink
}

func NewFanOut(sinks ...Sink) *FanOut {
	return &FanOut{sinks: sinks}
}

func (f *FanOut) Save(ctx context.Context, area string, year int, records []domain.Record) error {
	for _, s := range f.sinks {
		if err := s.Save(ctx, area, year, records); err != nil {
			return err
		}
	}
	return nil
}
