package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type taskEvents struct {
	log []string
}

func record(task *Task) *taskEvents {
	ev := &taskEvents{}
	task.OnStart.Connect(func(*Task) { ev.log = append(ev.log, "start") })
	task.OnRepeat.Connect(func(*Task) { ev.log = append(ev.log, "repeat") })
	task.OnComplete.Connect(func(*Task) { ev.log = append(ev.log, "complete") })
	task.OnDispose.Connect(func(*Task) { ev.log = append(ev.log, "dispose") })
	return ev
}

func TestTaskFiresOnceThenDisposes(t *testing.T) {
	task := NewTask(TaskConfig{Delay: time.Second})
	ev := record(task)
	require.True(t, task.Running())
	require.NotEmpty(t, task.ID())

	for i := 0; i < 9; i++ {
		task.Update(0, 100*ms)
	}
	require.Equal(t, []string{"start"}, ev.log)
	require.Equal(t, 100*ms, task.Remaining())

	task.Update(0, 100*ms)
	require.Equal(t, []string{"start", "complete", "dispose"}, ev.log)
	require.True(t, task.Disposed())
	require.False(t, task.Running())

	for i := 0; i < 5; i++ {
		task.Update(0, time.Second)
	}
	task.Dispose()
	require.Equal(t, []string{"start", "complete", "dispose"}, ev.log)
	require.Zero(t, task.Remaining())
	require.Zero(t, task.Repeat())
}

func TestTaskRepeats(t *testing.T) {
	task := NewTask(TaskConfig{Delay: 500 * ms, Repeat: 2})
	ev := record(task)

	for i := 0; i < 40; i++ {
		task.Update(0, 100*ms)
	}
	require.Equal(t, []string{"start", "repeat", "repeat", "complete", "dispose"}, ev.log)
}

func TestTaskRepeatResetsToDelay(t *testing.T) {
	task := NewTask(TaskConfig{Delay: 500 * ms, Repeat: 1})
	task.Update(0, 700*ms)
	require.Equal(t, 500*ms, task.Remaining())
	require.Equal(t, 0, task.Repeat())
}

func TestTaskPauseFreezesCountdown(t *testing.T) {
	task := NewTask(TaskConfig{Delay: time.Second})
	ev := record(task)

	task.Update(0, 300*ms)
	task.Pause()
	for i := 0; i < 100; i++ {
		task.Update(0, time.Second)
	}
	require.Equal(t, 700*ms, task.Remaining())
	require.Equal(t, []string{"start"}, ev.log)

	task.Resume()
	task.Update(0, 200*ms)
	require.Equal(t, 500*ms, task.Remaining())
}

func TestTaskSpeed(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  time.Duration
	}{
		{name: "default", speed: 0, want: 900 * ms},
		{name: "double", speed: 2, want: 800 * ms},
		{name: "half", speed: 0.5, want: 950 * ms},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask(TaskConfig{Delay: time.Second, Speed: tt.speed})
			task.Update(0, 100*ms)
			require.Equal(t, tt.want, task.Remaining())
		})
	}
}

func TestTaskZeroSpeedDoesNotStart(t *testing.T) {
	task := NewTask(TaskConfig{Delay: time.Second})
	ev := record(task)
	task.SetSpeed(0)

	task.Update(0, 500*ms)
	require.Empty(t, ev.log)
	require.False(t, task.Started())
	require.Equal(t, time.Second, task.Remaining())

	task.SetSpeed(1)
	task.Update(0, 500*ms)
	require.Equal(t, []string{"start"}, ev.log)
}

func TestTaskForcedDispose(t *testing.T) {
	task := NewTask(TaskConfig{Delay: time.Second, Repeat: 3})
	ev := record(task)

	task.Update(0, 100*ms)
	task.Dispose()
	require.Equal(t, []string{"start", "dispose"}, ev.log)
	require.Zero(t, task.Repeat())
	require.Zero(t, task.OnStart.Len()+task.OnRepeat.Len()+task.OnComplete.Len()+task.OnDispose.Len())

	task.Update(0, 2*time.Second)
	require.Equal(t, []string{"start", "dispose"}, ev.log)
}

func TestTaskDisposeFromCompleteHandler(t *testing.T) {
	task := NewTask(TaskConfig{Delay: 100 * ms})
	ev := record(task)
	task.OnComplete.Connect(func(tk *Task) { tk.Dispose() })

	task.Update(0, 100*ms)
	require.Equal(t, []string{"start", "complete", "dispose"}, ev.log)
}

func TestTaskDisposeBeforeStart(t *testing.T) {
	task := NewTask(TaskConfig{Delay: 100 * ms})
	ev := record(task)
	task.Dispose()
	task.Update(0, 100*ms)
	require.Equal(t, []string{"dispose"}, ev.log)
}
