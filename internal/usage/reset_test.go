package usage

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateNextReset(t *testing.T) {
	tests := []struct {
		name      string
		resetTime string
		now       time.Time
		want      time.Time
	}{
		{
			name:      "before midnight",
			resetTime: "00:00",
			now:       time.Date(2026, 3, 10, 23, 59, 0, 0, time.Local),
			want:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.Local),
		},
		{
			name:      "exactly at reset",
			resetTime: "00:00",
			now:       time.Date(2026, 3, 11, 0, 0, 0, 0, time.Local),
			want:      time.Date(2026, 3, 12, 0, 0, 0, 0, time.Local),
		},
		{
			name:      "later today",
			resetTime: "04:30",
			now:       time.Date(2026, 3, 10, 1, 0, 0, 0, time.Local),
			want:      time.Date(2026, 3, 10, 4, 30, 0, 0, time.Local),
		},
		{
			name:      "end of month",
			resetTime: "04:30",
			now:       time.Date(2026, 1, 31, 5, 0, 0, 0, time.Local),
			want:      time.Date(2026, 2, 1, 4, 30, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := NewResetScheduler(tt.resetTime, quartz.NewReal(), func(context.Context) {}, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, rs.Next(tt.now))
		})
	}
}

func TestNewResetSchedulerRejectsBadTime(t *testing.T) {
	_, err := NewResetScheduler("midnight", quartz.NewReal(), func(context.Context) {}, zerolog.Nop())
	assert.Error(t, err)
}

func TestResetSchedulerFiresAtResetTime(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 3, 10, 23, 59, 0, 0, time.Local))

	resets := make(chan struct{}, 2)
	rs, err := NewResetScheduler("00:00", clock, func(context.Context) {
		resets <- struct{}{}
	}, zerolog.Nop())
	require.NoError(t, err)

	trap := clock.Trap().NewTimer("reset")
	defer trap.Close()

	rs.Start(ctx)
	defer rs.Stop()

	call := trap.MustWait(ctx)
	assert.Equal(t, time.Minute, call.Duration)
	call.MustRelease(ctx)

	clock.Advance(time.Minute).MustWait(ctx)

	select {
	case <-resets:
	case <-ctx.Done():
		t.Fatal("reset did not fire")
	}

	// The next timer covers a whole day.
	call = trap.MustWait(ctx)
	assert.Equal(t, 24*time.Hour, call.Duration)
	call.MustRelease(ctx)
}

func TestRetentionSchedulerUsesCron(t *testing.T) {
	rs, err := NewRetentionScheduler("30 3 * * *", quartz.NewReal(), func(context.Context) {}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 30, 0, 0, time.Local), rs.Next(now))

	_, err = NewRetentionScheduler("not cron", quartz.NewReal(), func(context.Context) {}, zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduleStopWithoutStart(t *testing.T) {
	rs, err := NewResetScheduler("00:00", quartz.NewReal(), func(context.Context) {}, zerolog.Nop())
	require.NoError(t, err)
	rs.Stop()
}
