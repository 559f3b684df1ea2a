package generation

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"z-docgen-ai-api/internal/domain/entity"
)

// SessionState 生成会话状态
type SessionState string

const (
	SessionStateCreated   SessionState = "created"
	SessionStateStreaming SessionState = "streaming"
	SessionStateCompleted SessionState = "completed"
	SessionStateFailed    SessionState = "failed"
	SessionStateCanceled  SessionState = "canceled"
)

// Terminal 判断是否为终态
func (s SessionState) Terminal() bool {
	switch s {
	case SessionStateCompleted, SessionStateFailed, SessionStateCanceled:
		return true
	}
	return false
}

// EventType 会话事件类型
type EventType string

const (
	EventFragment  EventType = "fragment"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCanceled  EventType = "canceled"
)

// Event 会话向观察者投递的事件。终态事件（completed/failed/canceled）
// 至多一个，且一定是最后一个。
type Event struct {
	Type     EventType               `json:"type"`
	Fragment *Fragment               `json:"fragment,omitempty"`
	Artifact *entity.ContentArtifact `json:"artifact,omitempty"`
	Err      error                   `json:"-"`
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Session 单个分区的一次生成会话。
// 状态机：created → streaming → completed | failed | canceled。
type Session struct {
	ID        string
	SectionID string

	mu        sync.Mutex
	state     SessionState
	fragments []Fragment
	terminal  *Event
	subs      []*subscriber
	bufSize   int

	cancel context.CancelFunc
}

func newSession(sectionID string, bufSize int, cancel context.CancelFunc) *Session {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Session{
		ID:        uuid.NewString(),
		SectionID: sectionID,
		state:     SessionStateCreated,
		bufSize:   bufSize,
		cancel:    cancel,
	}
}

// State 返回当前状态
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel 请求取消会话。幂等：终态后调用不做任何事。
func (s *Session) Cancel() {
	s.mu.Lock()
	terminal := s.state.Terminal()
	s.mu.Unlock()
	if !terminal {
		s.cancel()
	}
}

// Subscribe 订阅会话事件。晚到的订阅者会先收到已产生的全部片段，
// 再收到后续事件；会话已终态时重放片段与终态事件后立即关闭。
// 返回的取消函数应在观察者退出时调用。
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replay := make([]Event, 0, len(s.fragments)+1)
	for i := range s.fragments {
		f := s.fragments[i]
		replay = append(replay, Event{Type: EventFragment, Fragment: &f})
	}
	closed := s.terminal != nil
	if closed {
		replay = append(replay, *s.terminal)
	}

	sub := &subscriber{
		ch:   make(chan Event, s.bufSize+len(replay)),
		done: make(chan struct{}),
	}

	// 重放必须在持锁状态下完成：通道容量覆盖全部重放事件，发送不会阻塞，
	// 而并发的广播或终态关闭要等锁，不可能插到重放序列中间。
	for _, ev := range replay {
		sub.ch <- ev
	}
	if closed {
		close(sub.ch)
	} else {
		s.subs = append(s.subs, sub)
	}

	return sub.ch, sub.close
}

// publishFragment 记录并广播一个片段
func (s *Session) publishFragment(f Fragment) {
	s.mu.Lock()
	if s.state == SessionStateCreated {
		s.state = SessionStateStreaming
	}
	s.fragments = append(s.fragments, f)
	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	ev := Event{Type: EventFragment, Fragment: &f}
	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
	}
}

// finish 进入终态并广播终态事件，之后关闭全部订阅通道。
// 只有首次调用生效。
func (s *Session) finish(state SessionState, ev Event) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.terminal = &ev
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
		close(sub.ch)
	}
}

// FragmentCount 已产生的片段数
func (s *Session) FragmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fragments)
}
