package chatroom

import (
	"github.com/gammazero/deque"

	"chat_backend/internal/domain"
)

// messageLog is the ordered store behind a room. New entries enter at the
// write end (front); the read end (back) holds the oldest entry. Nothing can
// be inserted or removed in the middle.
type messageLog struct {
	q deque.Deque[*domain.ChatMessage]
}

func (l *messageLog) put(m *domain.ChatMessage) {
	l.q.PushFront(m)
}

// peek returns the read-end entry or nil.
func (l *messageLog) peek() *domain.ChatMessage {
	if l.q.Len() == 0 {
		return nil
	}
	return l.q.Back()
}

// newest returns the write-end entry or nil.
func (l *messageLog) newest() *domain.ChatMessage {
	if l.q.Len() == 0 {
		return nil
	}
	return l.q.Front()
}

func (l *messageLog) len() int {
	return l.q.Len()
}

// newestFirst walks from the write end until fn returns false.
func (l *messageLog) newestFirst(fn func(*domain.ChatMessage) bool) {
	for i := 0; i < l.q.Len(); i++ {
		if !fn(l.q.At(i)) {
			return
		}
	}
}

// oldestFirst walks from the read end until fn returns false.
func (l *messageLog) oldestFirst(fn func(*domain.ChatMessage) bool) {
	for i := l.q.Len() - 1; i >= 0; i-- {
		if !fn(l.q.At(i)) {
			return
		}
	}
}

// evictOldest drops the read-end entry.
func (l *messageLog) evictOldest() *domain.ChatMessage {
	if l.q.Len() == 0 {
		return nil
	}
	return l.q.PopBack()
}

func (l *messageLog) reset() {
	l.q.Clear()
}
