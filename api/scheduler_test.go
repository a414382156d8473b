package api

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
)

func TestScheduler_RunNowFlagsPastPlans(t *testing.T) {
	// GIVEN: A past shift without attendance
	srv := newTestServer(t)
	srv.createMorning(7, "2025-03-10")
	logger, _ := test.NewNullLogger()

	s := NewMissingAttendanceScheduler(srv.handler.Missing, logger)
	s.Now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }

	// WHEN: Running the check twice
	first := s.RunNow()
	second := s.RunNow()

	// THEN: The plan is flagged once
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)

	shifts, err := srv.store.ListShifts(context.Background(), core.ShiftFilter{})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.True(t, shifts[0].IsChanged)
}

func TestScheduler_StartStop(t *testing.T) {
	srv := newTestServer(t)
	logger, hook := test.NewNullLogger()

	s := NewMissingAttendanceScheduler(srv.handler.Missing, logger)
	s.CheckInterval = time.Hour
	s.Start()
	s.Start()
	s.Stop()

	assert.Equal(t, "Scheduler stopped", hook.LastEntry().Message)
}

func TestScheduler_Disabled(t *testing.T) {
	srv := newTestServer(t)
	logger, hook := test.NewNullLogger()

	s := NewMissingAttendanceScheduler(srv.handler.Missing, logger)
	s.Enabled = false
	s.Start()
	s.Stop()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Scheduler disabled, not starting", hook.LastEntry().Message)
}
