package app

import (
	"context"
	"testing"
	"time"

	"stagecast/internal/broadcast"
	"stagecast/internal/media"
	"stagecast/internal/notify"
	"stagecast/internal/server"
	"stagecast/internal/signal"
	"stagecast/internal/store"
)

func newTestApp(t *testing.T, queue signal.Queue, clockInterval time.Duration) (*App, *store.Store) {
	t.Helper()
	st := store.New(store.Config{})
	srv, err := server.New(st, queue, server.Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("server.New error: %v", err)
	}
	application, err := New(Config{
		Store:  st,
		Server: srv,
		Queue:  queue,
		Translator: signal.Translator{
			Media:    media.LogController{},
			Notifier: notify.LogNotifier{},
		},
		ClockInterval:   clockInterval,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return application, st
}

func TestNewValidatesComponents(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error when store is missing")
	}

	st := store.New(store.Config{})
	if _, err := New(Config{Store: st}); err == nil {
		t.Fatal("expected error when server is missing")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	application, _ := newTestApp(t, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected graceful stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestDispatchLoopAppliesTranslatedSignals(t *testing.T) {
	queue := signal.NewMemoryQueue(8)
	application, st := newTestApp(t, queue, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	event := signal.Event{
		Type: signal.TypeGoLive,
		From: signal.Sender{UserType: "producer"},
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := queue.Publish(context.Background(), event); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		if st.Snapshot().State.Status() == broadcast.StatusLive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("signal was never dispatched")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected graceful stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestClockLoopAdvancesElapsedTime(t *testing.T) {
	application, st := newTestApp(t, nil, 5*time.Millisecond)

	startedAt := time.Now().Add(-65 * time.Second)
	if _, err := st.Dispatch(context.Background(), broadcast.SetEventStatus{Status: broadcast.StatusLive}); err != nil {
		t.Fatalf("dispatch status: %v", err)
	}
	if _, err := st.Dispatch(context.Background(), broadcast.SetShowStarted{ShowStartedAt: startedAt}); err != nil {
		t.Fatalf("dispatch show start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		elapsed := st.Snapshot().State.ElapsedTime
		if elapsed != broadcast.DefaultElapsedTime && elapsed >= "00:01:05" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("clock never advanced, still %q", elapsed)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected graceful stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestClockLoopIdlesBeforeShowStart(t *testing.T) {
	application, st := newTestApp(t, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	if elapsed := st.Snapshot().State.ElapsedTime; elapsed != broadcast.DefaultElapsedTime {
		t.Fatalf("expected idle clock, got %q", elapsed)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected graceful stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
