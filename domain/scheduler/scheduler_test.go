package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return NewScheduler(slog.Default(), &Config{RunTimeout: time.Minute})
}

func TestScheduler_IsRunning(t *testing.T) {
	s := testScheduler(t)

	if s.IsRunning() {
		t.Error("New scheduler should not be running")
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	if !s.IsRunning() {
		t.Error("Scheduler should be running after setting running=true")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if s.IsRunning() {
		t.Error("Scheduler should not be running after setting running=false")
	}
}

func TestScheduler_ListTasks(t *testing.T) {
	s := testScheduler(t)

	tasks := s.ListTasks()
	if len(tasks) != 0 {
		t.Errorf("New scheduler should have 0 tasks, got %d", len(tasks))
	}

	s.mu.Lock()
	s.tasks["task1"] = 1
	s.tasks["task2"] = 2
	s.mu.Unlock()

	tasks = s.ListTasks()
	if len(tasks) != 2 {
		t.Errorf("Expected 2 tasks, got %d", len(tasks))
	}

	hasTask1, hasTask2 := false, false
	for _, name := range tasks {
		if name == "task1" {
			hasTask1 = true
		}
		if name == "task2" {
			hasTask2 = true
		}
	}
	if !hasTask1 {
		t.Error("Expected task1 in list")
	}
	if !hasTask2 {
		t.Error("Expected task2 in list")
	}
}

func TestNewScheduler(t *testing.T) {
	s := testScheduler(t)

	if s.cron == nil {
		t.Error("Scheduler cron should not be nil")
	}
	if s.tasks == nil {
		t.Error("Scheduler tasks map should not be nil")
	}
	if s.running {
		t.Error("New scheduler should not be running")
	}
}

func TestNewScheduler_DefaultRunTimeout(t *testing.T) {
	s := NewScheduler(slog.Default(), &Config{})
	if s.runTimeout != 30*time.Minute {
		t.Errorf("runTimeout = %v, want 30m default when Config.RunTimeout is zero", s.runTimeout)
	}
}

func TestScheduler_GetTaskInfo_WithTasks(t *testing.T) {
	s := testScheduler(t)

	dummyTask := func(ctx context.Context) error { return nil }

	if err := s.AddCronTask("test-task", "@every 1h", dummyTask); err != nil {
		t.Fatalf("Failed to add cron task: %v", err)
	}

	info := s.GetTaskInfo()
	if len(info) != 1 {
		t.Fatalf("GetTaskInfo should return 1 item, got %d", len(info))
	}
	if info[0].Name != "test-task" {
		t.Errorf("TaskInfo.Name = %q, want %q", info[0].Name, "test-task")
	}
	if info[0].Schedule == "" {
		t.Error("TaskInfo.Schedule should not be empty")
	}
}

func TestScheduler_AddCronTask_ReplaceExisting(t *testing.T) {
	s := testScheduler(t)
	dummyTask := func(ctx context.Context) error { return nil }

	if err := s.AddCronTask("task1", "@every 1h", dummyTask); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}
	if tasks := s.ListTasks(); len(tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(tasks))
	}

	if err := s.AddCronTask("task1", "@every 30m", dummyTask); err != nil {
		t.Fatalf("Failed to replace task: %v", err)
	}
	if tasks := s.ListTasks(); len(tasks) != 1 {
		t.Fatalf("Expected 1 task after replace, got %d", len(tasks))
	}
}

func TestScheduler_AddIntervalTask_ReplaceExisting(t *testing.T) {
	s := testScheduler(t)
	dummyTask := func(ctx context.Context) error { return nil }

	if err := s.AddIntervalTask("task1", time.Hour, dummyTask); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}
	if err := s.AddIntervalTask("task1", 30*time.Minute, dummyTask); err != nil {
		t.Fatalf("Failed to replace task: %v", err)
	}
	if tasks := s.ListTasks(); len(tasks) != 1 {
		t.Fatalf("Expected 1 task after replace, got %d", len(tasks))
	}
}

func TestScheduler_AddCronTask_InvalidSchedule(t *testing.T) {
	s := testScheduler(t)
	dummyTask := func(ctx context.Context) error { return nil }

	err := s.AddCronTask("task1", "not a valid schedule", dummyTask)
	if err == nil {
		t.Error("Expected error for invalid schedule, got nil")
	}
	if tasks := s.ListTasks(); len(tasks) != 0 {
		t.Errorf("Expected 0 tasks after failed add, got %d", len(tasks))
	}
}

func TestScheduler_RemoveTask(t *testing.T) {
	s := testScheduler(t)
	dummyTask := func(ctx context.Context) error { return nil }

	if err := s.AddCronTask("task1", "@every 1h", dummyTask); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}
	s.RemoveTask("task1")
	if tasks := s.ListTasks(); len(tasks) != 0 {
		t.Errorf("Expected 0 tasks after remove, got %d", len(tasks))
	}

	// Removing an unknown task is a no-op, not an error.
	s.RemoveTask("does-not-exist")
}
