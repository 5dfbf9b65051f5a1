package engine

import (
	"context"

	"matchmaker/feature/matching/models"

	"go.uber.org/zap"
)

// RunBatchPairing pairs the active store entries of both categories index for index,
// oldest first. Every user is claimed from the queue cache before the saga runs, so a
// concurrent RequestMatch can never pair the same user.
func (e *Engine) RunBatchPairing(ctx context.Context) BatchResult {
	res := e.runBatchPairing(ctx)
	e.metrics.RequestOutcome("batch_pairing", string(res.Error))
	e.RefreshQueueMetrics(ctx)
	return res
}

func (e *Engine) runBatchPairing(ctx context.Context) BatchResult {
	ones, err := e.store.ListActive(ctx, models.CategoryOne)
	if err != nil {
		e.logger.Error("Batch pairing skipped", zap.Error(err))
		return BatchResult{Error: InternalError}
	}
	twos, err := e.store.ListActive(ctx, models.CategoryTwo)
	if err != nil {
		e.logger.Error("Batch pairing skipped", zap.Error(err))
		return BatchResult{Error: InternalError}
	}

	var res BatchResult
	n := min(len(ones), len(twos))

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}

		a := &candidate{UserID: ones[i].UserID, Category: models.CategoryOne, Score: ones[i].Score()}
		b := &candidate{UserID: twos[i].UserID, Category: models.CategoryTwo, Score: twos[i].Score()}

		claimed, err := e.claimPair(ctx, a, b)
		if err != nil {
			e.logger.Warn("Failed to claim batch pair", zap.String("user_a", a.UserID), zap.String("user_b", b.UserID), zap.Error(err))
			res.Failures++
			continue
		}
		if !claimed {
			res.Skipped++
			continue
		}

		if _, kind := e.pair(ctx, a, b, sourceBatch); kind != "" {
			res.Failures++
			continue
		}
		res.PairsCreated++
	}

	if res.PairsCreated > 0 || res.Failures > 0 {
		e.logger.Info("Batch pairing finished",
			zap.Int("pairs_created", res.PairsCreated),
			zap.Int("failures", res.Failures),
			zap.Int("skipped", res.Skipped),
		)
	}
	return res
}

// claimPair removes both users from the cache. When only a is claimed it is put back
// with its original score and the pair is skipped.
func (e *Engine) claimPair(ctx context.Context, a, b *candidate) (bool, error) {
	okA, err := e.cache.Remove(ctx, a.Category, a.UserID)
	if err != nil || !okA {
		return false, err
	}

	okB, err := e.cache.Remove(ctx, b.Category, b.UserID)
	if err == nil && okB {
		return true, nil
	}

	if restoreErr := e.cache.Enqueue(ctx, a.Category, a.UserID, a.Score); restoreErr != nil {
		e.logger.Warn("Failed to restore claimed user", zap.String("user_id", a.UserID), zap.Error(restoreErr))
	}
	return false, err
}
