package generation

import (
	"context"
	"sync"
	"testing"
	"time"

	"z-docgen-ai-api/internal/domain/entity"
)

func collectEvents(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d events, want %d", len(events), n)
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events, want %d", len(events), n)
		}
	}
	return events
}

func TestSessionSubscribeReceivesFragmentsAndTerminal(t *testing.T) {
	sess := newSession("sec-1", 4, func() {})
	ch, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	sess.publishFragment(Fragment{Index: 0, Text: "开头"})
	sess.publishFragment(Fragment{Index: 1, Text: "结尾"})
	sess.finish(SessionStateCompleted, Event{Type: EventCompleted, Artifact: &entity.ContentArtifact{ID: "a-1"}})

	events := collectEvents(t, ch, 3)
	if events[0].Type != EventFragment || events[0].Fragment.Text != "开头" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Fragment.Index != 1 {
		t.Errorf("event 1 index = %d", events[1].Fragment.Index)
	}
	if events[2].Type != EventCompleted || events[2].Artifact.ID != "a-1" {
		t.Errorf("terminal = %+v", events[2])
	}

	// 终态后通道应已关闭
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after terminal event")
	}
	if sess.State() != SessionStateCompleted {
		t.Errorf("state = %s", sess.State())
	}
}

func TestSessionLateSubscriberReplaysFragments(t *testing.T) {
	sess := newSession("sec-1", 4, func() {})
	sess.publishFragment(Fragment{Index: 0, Text: "早到"})
	sess.publishFragment(Fragment{Index: 1, Text: "片段"})

	ch, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	sess.finish(SessionStateCompleted, Event{Type: EventCompleted})

	events := collectEvents(t, ch, 3)
	if events[0].Fragment.Text != "早到" || events[1].Fragment.Text != "片段" {
		t.Errorf("replayed fragments = %+v, %+v", events[0], events[1])
	}
	if events[2].Type != EventCompleted {
		t.Errorf("terminal = %+v", events[2])
	}
}

func TestSessionSubscribeAfterTerminal(t *testing.T) {
	sess := newSession("sec-1", 4, func() {})
	sess.publishFragment(Fragment{Index: 0, Text: "内容"})
	sess.finish(SessionStateFailed, Event{Type: EventFailed, Err: context.DeadlineExceeded})

	ch, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	events := collectEvents(t, ch, 2)
	if events[0].Type != EventFragment {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != EventFailed {
		t.Errorf("event 1 = %+v", events[1])
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed immediately for post-terminal subscriber")
	}
}

func TestSessionFinishIdempotent(t *testing.T) {
	sess := newSession("sec-1", 4, func() {})
	sess.finish(SessionStateCanceled, Event{Type: EventCanceled})
	sess.finish(SessionStateCompleted, Event{Type: EventCompleted})

	if sess.State() != SessionStateCanceled {
		t.Errorf("state = %s, want canceled (first finish wins)", sess.State())
	}
}

func TestSessionCancelInvokesCancelFuncOnce(t *testing.T) {
	calls := 0
	sess := newSession("sec-1", 4, func() { calls++ })

	sess.Cancel()
	if calls != 1 {
		t.Fatalf("cancel calls = %d", calls)
	}

	sess.finish(SessionStateCanceled, Event{Type: EventCanceled})
	sess.Cancel()
	if calls != 1 {
		t.Errorf("cancel after terminal should be a no-op, calls = %d", calls)
	}
}

func TestSessionSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	sess := newSession("sec-1", 1, func() {})

	slowCh, slowUnsub := sess.Subscribe()
	fastCh, fastUnsub := sess.Subscribe()
	defer fastUnsub()

	// 慢订阅者填满缓冲后退出，发布者靠 done 通道解除阻塞
	sess.publishFragment(Fragment{Index: 0, Text: "a"})
	slowUnsub()
	_ = slowCh

	done := make(chan struct{})
	go func() {
		sess.publishFragment(Fragment{Index: 1, Text: "b"})
		sess.publishFragment(Fragment{Index: 2, Text: "c"})
		close(done)
	}()

	events := collectEvents(t, fastCh, 3)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked by unsubscribed slow subscriber")
	}
	if events[2].Fragment.Text != "c" {
		t.Errorf("fast subscriber missed fragments: %+v", events)
	}
}

func TestSessionStateTransitions(t *testing.T) {
	sess := newSession("sec-1", 4, func() {})
	if sess.State() != SessionStateCreated {
		t.Fatalf("initial state = %s", sess.State())
	}

	sess.publishFragment(Fragment{Index: 0, Text: "x"})
	if sess.State() != SessionStateStreaming {
		t.Errorf("state after fragment = %s", sess.State())
	}
	if sess.FragmentCount() != 1 {
		t.Errorf("fragment count = %d", sess.FragmentCount())
	}
}

func TestSessionStateTerminal(t *testing.T) {
	tests := []struct {
		state SessionState
		want  bool
	}{
		{SessionStateCreated, false},
		{SessionStateStreaming, false},
		{SessionStateCompleted, true},
		{SessionStateFailed, true},
		{SessionStateCanceled, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestSessionLateJoinDuringActiveStreamKeepsOrder(t *testing.T) {
	const total = 40
	const observers = 8
	sess := newSession("sec-1", 4, func() {})

	results := make([][]Event, observers)
	var wg sync.WaitGroup
	for n := 0; n < observers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ch, unsubscribe := sess.Subscribe()
			defer unsubscribe()
			for ev := range ch {
				results[n] = append(results[n], ev)
			}
		}(n)
	}

	for i := 0; i < total; i++ {
		sess.publishFragment(Fragment{Index: i, Text: "片段"})
	}
	sess.finish(SessionStateCompleted, Event{Type: EventCompleted, Artifact: &entity.ContentArtifact{ID: "a-1"}})
	wg.Wait()

	// 无论观察者何时加入，都必须收到全部片段且顺序不乱
	for n, got := range results {
		if len(got) != total+1 {
			t.Fatalf("observer %d got %d events, want %d", n, len(got), total+1)
		}
		for i := 0; i < total; i++ {
			if got[i].Type != EventFragment || got[i].Fragment.Index != i {
				t.Fatalf("observer %d event %d = %+v, want fragment %d", n, i, got[i], i)
			}
		}
		if got[total].Type != EventCompleted {
			t.Fatalf("observer %d terminal = %+v", n, got[total])
		}
	}
}

func TestSessionSubscribeFinishRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		sess := newSession("sec-1", 2, func() {})
		sess.publishFragment(Fragment{Index: 0, Text: "片段"})

		done := make(chan []Event, 1)
		go func() {
			ch, unsubscribe := sess.Subscribe()
			defer unsubscribe()
			var got []Event
			for ev := range ch {
				got = append(got, ev)
			}
			done <- got
		}()

		sess.finish(SessionStateFailed, Event{Type: EventFailed, Err: context.DeadlineExceeded})

		got := <-done
		if len(got) != 2 {
			t.Fatalf("iteration %d: got %d events, want 2", i, len(got))
		}
		if got[0].Fragment == nil || got[0].Fragment.Index != 0 || got[1].Type != EventFailed {
			t.Fatalf("iteration %d: events = %+v", i, got)
		}
	}
}
