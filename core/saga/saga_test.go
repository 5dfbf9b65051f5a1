package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	calls []string
}

func (r *recorder) action(name string, err error) Action {
	return func(ctx context.Context) error {
		r.calls = append(r.calls, name)
		return err
	}
}

func TestSaga_Execute(t *testing.T) {
	t.Run("AllStepsSucceed", func(t *testing.T) {
		rec := &recorder{}
		s := New("s1", zap.NewNop()).
			AddStep("a", rec.action("do a", nil), rec.action("undo a", nil)).
			AddStep("b", rec.action("do b", nil), rec.action("undo b", nil))

		require.NoError(t, s.Execute(context.Background()))
		assert.Equal(t, []string{"do a", "do b"}, rec.calls)
	})

	t.Run("CompensatesInReverse", func(t *testing.T) {
		rec := &recorder{}
		boom := errors.New("boom")
		s := New("s2", zap.NewNop()).
			AddStep("a", rec.action("do a", nil), rec.action("undo a", nil)).
			AddStep("b", rec.action("do b", nil), nil).
			AddStep("c", rec.action("do c", nil), rec.action("undo c", nil)).
			AddStep("d", rec.action("do d", boom), rec.action("undo d", nil))

		err := s.Execute(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "d", FailedStep(err))
		assert.Equal(t, []string{"do a", "do b", "do c", "do d", "undo c", "undo a"}, rec.calls)
	})

	t.Run("CompensationErrorsAreCollected", func(t *testing.T) {
		rec := &recorder{}
		s := New("s3", zap.NewNop()).
			AddStep("a", rec.action("do a", nil), rec.action("undo a", errors.New("undo failed"))).
			AddStep("b", rec.action("do b", errors.New("b failed")), nil)

		err := s.Execute(context.Background())
		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "b", stepErr.Step)
		assert.Len(t, stepErr.Compensations, 1)
		assert.Contains(t, err.Error(), "1 compensation errors")
	})

	t.Run("CancelledContextStillCompensates", func(t *testing.T) {
		rec := &recorder{}
		ctx, cancel := context.WithCancel(context.Background())
		s := New("s4", zap.NewNop()).
			AddStep("a", func(ctx context.Context) error {
				cancel()
				return nil
			}, rec.action("undo a", nil)).
			AddStep("b", rec.action("do b", nil), nil)

		err := s.Execute(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"undo a"}, rec.calls)
	})
}
