// Package saga runs a sequence of side-effecting steps where each step may carry a
// compensating action.
//
// When a step fails, the compensations of the steps that already completed run in
// reverse order and the failure is returned as a *StepError. Compensation failures are
// logged and collected but never replace the original cause, so callers can still map
// the failing step to a domain error.
//
//	s := saga.New(uuid.NewString(), logger).
//	    AddStep("create_room", createRoom, deleteRoom).
//	    AddStep("charge_credit", charge, nil)
//	if err := s.Execute(ctx); err != nil {
//	    switch saga.FailedStep(err) { ... }
//	}
package saga
