package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
)

// The memory repositories keep documents in process. They back the
// "memory" storage driver and the engine tests.

type memoryRoom struct {
	meta     domain.RoomMetadata
	messages []domain.MessageDocument
}

type memoryRoomRepository struct {
	mu     sync.RWMutex
	rooms  map[string]*memoryRoom
	nextID int64
}

func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoomRepository{rooms: make(map[string]*memoryRoom)}
}

func (r *memoryRoomRepository) Exists(_ context.Context, roomName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomName]
	return ok, nil
}

func (r *memoryRoomRepository) GetMetadata(_ context.Context, roomName string) (*domain.RoomMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	meta := copyRoomMetadata(room.meta)
	return &meta, nil
}

func (r *memoryRoomRepository) InsertMetadata(_ context.Context, meta *domain.RoomMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[meta.RoomName]; ok {
		return apperrors.ErrRoomAlreadyExists
	}
	r.rooms[meta.RoomName] = &memoryRoom{meta: copyRoomMetadata(*meta)}
	return nil
}

func (r *memoryRoomRepository) ReplaceMetadata(_ context.Context, meta *domain.RoomMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[meta.RoomName]; ok {
		room.meta = copyRoomMetadata(*meta)
		return nil
	}
	r.rooms[meta.RoomName] = &memoryRoom{meta: copyRoomMetadata(*meta)}
	return nil
}

func (r *memoryRoomRepository) InsertMessage(_ context.Context, roomName string, doc *domain.MessageDocument) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return 0, apperrors.ErrRoomNotFound
	}
	for _, existing := range room.messages {
		if existing.Props.SequenceNum == doc.Props.SequenceNum {
			return 0, apperrors.ErrMessageStored
		}
	}
	r.nextID++
	stored := *doc
	stored.ID = r.nextID
	room.messages = append(room.messages, stored)
	return stored.ID, nil
}

func (r *memoryRoomRepository) MessageExists(_ context.Context, roomName string, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return false, nil
	}
	for _, m := range room.messages {
		if m.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRoomRepository) MessageIDBySequence(_ context.Context, roomName string, seq int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if room, ok := r.rooms[roomName]; ok {
		for _, m := range room.messages {
			if m.Props.SequenceNum == seq {
				return m.ID, nil
			}
		}
	}
	return 0, apperrors.ErrNotFound
}

func (r *memoryRoomRepository) ListMessages(_ context.Context, roomName string) ([]domain.MessageDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return nil, nil
	}
	out := make([]domain.MessageDocument, len(room.messages))
	copy(out, room.messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Props.SequenceNum < out[j].Props.SequenceNum
	})
	return out, nil
}

func copyRoomMetadata(m domain.RoomMetadata) domain.RoomMetadata {
	m.MemberList = append([]string(nil), m.MemberList...)
	return m
}

type memoryRoomListRepository struct {
	mu    sync.RWMutex
	lists map[string]domain.RoomListMetadata
}

func NewMemoryRoomListRepository() RoomListRepository {
	return &memoryRoomListRepository{lists: make(map[string]domain.RoomListMetadata)}
}

func (r *memoryRoomListRepository) Get(_ context.Context, listName string) (*domain.RoomListMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.lists[listName]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	meta = copyRoomList(meta)
	return &meta, nil
}

func (r *memoryRoomListRepository) Exists(_ context.Context, listName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lists[listName]
	return ok, nil
}

func (r *memoryRoomListRepository) Insert(_ context.Context, meta *domain.RoomListMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[meta.ListName]; ok {
		return apperrors.ErrBadRequest
	}
	r.lists[meta.ListName] = copyRoomList(*meta)
	return nil
}

func (r *memoryRoomListRepository) Replace(_ context.Context, meta *domain.RoomListMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[meta.ListName] = copyRoomList(*meta)
	return nil
}

func copyRoomList(m domain.RoomListMetadata) domain.RoomListMetadata {
	rooms := make([]domain.RoomSnapshot, len(m.RoomsMetadata))
	for i, s := range m.RoomsMetadata {
		s.MemberList = append([]string(nil), s.MemberList...)
		rooms[i] = s
	}
	m.RoomsMetadata = rooms
	return m
}

type memorySequenceRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemorySequenceRepository() SequenceRepository {
	return &memorySequenceRepository{counters: make(map[string]int64)}
}

func (r *memorySequenceRepository) Next(_ context.Context, roomName string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[roomName]++
	return r.counters[roomName], nil
}

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.ChatUser
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]domain.ChatUser)}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.ChatUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Alias]; ok {
		return apperrors.ErrUserAlreadyExists
	}
	r.users[user.Alias] = *user
	return nil
}

func (r *memoryUserRepository) GetByAlias(_ context.Context, alias string) (*domain.ChatUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[alias]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) Exists(_ context.Context, alias string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[alias]
	return ok, nil
}

func (r *memoryUserRepository) ListAliases(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]domain.ChatUser, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreateTime.Equal(users[j].CreateTime) {
			return users[i].Alias < users[j].Alias
		}
		return users[i].CreateTime.Before(users[j].CreateTime)
	})
	aliases := make([]string, len(users))
	for i, u := range users {
		aliases[i] = u.Alias
	}
	return aliases, nil
}

type memoryRateLimitRepository struct {
	mu      sync.Mutex
	windows map[string]rateWindow
}

type rateWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryRateLimitRepository() RateLimitRepository {
	return &memoryRateLimitRepository{windows: make(map[string]rateWindow)}
}

func (r *memoryRateLimitRepository) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	w := r.windows[key]
	if now.After(w.resetAt) {
		w = rateWindow{resetAt: now.Add(window)}
	}
	w.count++
	r.windows[key] = w
	return w.count, nil
}

type memoryAuditRepository struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) CreateLog(_ context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, *event)
	return nil
}

func (r *memoryAuditRepository) ListByRoom(_ context.Context, roomName string, limit int) ([]domain.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.AuditEvent{}
	for _, e := range r.events {
		if len(out) >= limit {
			break
		}
		if e.RoomName == roomName {
			out = append(out, e)
		}
	}
	return out, nil
}
