package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"surveydraw/models"
	"surveydraw/service"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dueSurveys(ids ...string) []*models.SurveyInstance {
	surveys := make([]*models.SurveyInstance, 0, len(ids))
	for _, id := range ids {
		surveys = append(surveys, &models.SurveyInstance{ID: id})
	}
	return surveys
}

func TestDrawWorker_ProcessDueDraws(t *testing.T) {
	ctx := context.Background()

	t.Run("runs every due draw and tolerates individual failures", func(t *testing.T) {
		draws := new(service.MockDrawService)
		draws.On("ListDueDraws", ctx).Return(dueSurveys("S1", "S2", "S3", "S4"), nil)
		draws.On("RunDraw", ctx, "S1").Return(&models.DrawRecord{ID: 1, CandidateCount: 5}, nil)
		draws.On("RunDraw", ctx, "S2").Return(nil, service.ErrAlreadyDrawn)
		draws.On("RunDraw", ctx, "S3").Return(nil, errors.New("connection reset"))
		draws.On("RunDraw", ctx, "S4").Return(nil, service.ErrNoEligibleCandidates)

		err := NewDrawWorker(draws, time.Minute).ProcessDueDraws(ctx)

		require.NoError(t, err)
		draws.AssertExpectations(t)
	})

	t.Run("nothing due", func(t *testing.T) {
		draws := new(service.MockDrawService)
		draws.On("ListDueDraws", ctx).Return([]*models.SurveyInstance{}, nil)

		err := NewDrawWorker(draws, time.Minute).ProcessDueDraws(ctx)

		require.NoError(t, err)
		draws.AssertNotCalled(t, "RunDraw", mock.Anything, mock.Anything)
	})

	t.Run("listing failure", func(t *testing.T) {
		draws := new(service.MockDrawService)
		draws.On("ListDueDraws", ctx).Return(nil, errors.New("store unavailable"))

		err := NewDrawWorker(draws, time.Minute).ProcessDueDraws(ctx)

		assert.ErrorContains(t, err, "store unavailable")
	})
}

func TestDrawWorker_StartRunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listed := make(chan struct{}, 1)
	draws := new(service.MockDrawService)
	draws.On("ListDueDraws", mock.Anything).Run(func(mock.Arguments) {
		select {
		case listed <- struct{}{}:
		default:
		}
	}).Return([]*models.SurveyInstance{}, nil)

	stop := NewDrawWorker(draws, time.Hour).Start(ctx)

	select {
	case <-listed:
	case <-time.After(time.Second):
		t.Fatal("worker did not process due draws on start")
	}

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestDrawWorker_NonPositiveIntervalFallsBackToDefault(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		t.Run(interval.String(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			draws := new(service.MockDrawService)
			draws.On("ListDueDraws", mock.Anything).Return([]*models.SurveyInstance{}, nil)

			worker := NewDrawWorker(draws, interval)
			assert.Equal(t, DefaultDrawInterval, worker.interval)

			assert.NotPanics(t, func() {
				stop := worker.Start(ctx)
				stop()
			})
		})
	}
}

func TestDrawWorker_ProcessDueDraws_LogFields(t *testing.T) {
	ctx := context.Background()
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)

	draws := new(service.MockDrawService)
	draws.On("ListDueDraws", ctx).Return(dueSurveys("S1", "S2"), nil)
	draws.On("RunDraw", ctx, "S1").Return(&models.DrawRecord{ID: 7, CandidateCount: 3, NotificationStatus: models.NotificationStatusSent}, nil)
	draws.On("RunDraw", ctx, "S2").Return(nil, errors.New("connection reset"))

	require.NoError(t, NewDrawWorker(draws, time.Minute).ProcessDueDraws(ctx))

	fieldsByMessage := map[string]map[string]interface{}{}
	for _, entry := range hook.AllEntries() {
		fieldsByMessage[entry.Message] = entry.Data
	}

	completed := fieldsByMessage["Survey draw completed"]
	require.NotNil(t, completed)
	assert.Equal(t, "S1", completed["survey_id"])
	assert.Equal(t, int64(7), completed["draw_id"])
	assert.Contains(t, completed, "candidate_count")
	assert.Contains(t, completed, "notification_status")

	failed := fieldsByMessage["Error running survey draw"]
	require.NotNil(t, failed)
	assert.Equal(t, "S2", failed["survey_id"])

	for _, fields := range fieldsByMessage {
		for key := range fields {
			assert.Equal(t, strings.ToLower(key), key, "log key %q is not snake_case", key)
		}
	}
}
