package service

import (
	"context"

	"github.com/labstack/gommon/log"
)

type sagaStep struct {
	name       string
	action     func(context.Context) error
	compensate func(context.Context) error
}

// Saga runs an ordered list of steps.  When a step fails, the
// compensations of the steps that already succeeded run in reverse
// order and the step's error is returned.  A nil compensation means the
// step has nothing to undo.
type Saga struct {
	name  string
	steps []sagaStep
	log   *log.Logger
}

func NewSaga(name string, logger *log.Logger) *Saga {
	if logger == nil {
		logger = log.New("saga")
	}
	return &Saga{name: name, log: logger}
}

// Step appends a step.  It returns the saga for chaining.
func (s *Saga) Step(name string, action, compensate func(context.Context) error) *Saga {
	s.steps = append(s.steps, sagaStep{name: name, action: action, compensate: compensate})
	return s
}

// Run executes the steps in order.  Compensations ignore cancellation of
// ctx: a request that times out still unwinds what it did.
func (s *Saga) Run(ctx context.Context) error {
	for i, st := range s.steps {
		if err := st.action(ctx); err != nil {
			s.unwind(context.WithoutCancel(ctx), i, st.name)
			return err
		}
	}
	return nil
}

func (s *Saga) unwind(ctx context.Context, failed int, failedName string) {
	for i := failed - 1; i >= 0; i-- {
		st := s.steps[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(ctx); err != nil {
			s.log.Errorj(log.JSON{"saga": s.name, "step": st.name, "failed_step": failedName, "error": err.Error()})
			continue
		}
		s.log.Infoj(log.JSON{"saga": s.name, "step": st.name, "failed_step": failedName, "compensated": true})
	}
}
