package service

import (
	"sync"

	"chat_backend/internal/chatroom"
	apperrors "chat_backend/pkg/errors"
)

// roomRegistry serializes access to the room list and to each room.
// Directory changes and membership changes take mu exclusively; message
// traffic only takes the room's own lock.
type roomRegistry struct {
	mu    sync.RWMutex
	list  *chatroom.RoomList
	locks map[string]*roomLock
}

// roomLock guards one room. removed is set, under the write lock, once the
// room left the list; holders acquired after that must not touch the room.
type roomLock struct {
	sync.RWMutex
	removed bool
}

func newRoomRegistry(list *chatroom.RoomList) *roomRegistry {
	return &roomRegistry{
		list:  list,
		locks: make(map[string]*roomLock),
	}
}

func (r *roomRegistry) lockFor(name string) *roomLock {
	lock, ok := r.locks[name]
	if !ok {
		lock = &roomLock{}
		r.locks[name] = lock
	}
	return lock
}

// lookup returns the tracked room and its lock.
func (r *roomRegistry) lookup(name string) (*chatroom.ChatRoom, *roomLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.list.Get(name)
	if room == nil {
		return nil, nil, apperrors.ErrRoomNotFound
	}
	return room, r.lockFor(name), nil
}

// read runs fn while holding the room's read lock.
func (r *roomRegistry) read(name string, fn func(*chatroom.ChatRoom) error) error {
	room, lock, err := r.lookup(name)
	if err != nil {
		return err
	}
	lock.RLock()
	defer lock.RUnlock()
	if lock.removed {
		return apperrors.ErrRoomNotFound
	}
	return fn(room)
}

// write runs fn while holding the room's write lock.
func (r *roomRegistry) write(name string, fn func(*chatroom.ChatRoom) error) error {
	room, lock, err := r.lookup(name)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()
	if lock.removed {
		return apperrors.ErrRoomNotFound
	}
	return fn(room)
}

// directory runs fn with the room list held exclusively.
func (r *roomRegistry) directory(fn func(*chatroom.RoomList) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.list)
}

// directoryRead runs fn with the room list held for reading.
func (r *roomRegistry) directoryRead(fn func(*chatroom.RoomList) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.list)
}

// forget drops the lock of a room no longer tracked. Callers hold mu and
// the room's write lock.
func (r *roomRegistry) forget(name string) {
	if lock, ok := r.locks[name]; ok {
		lock.removed = true
		delete(r.locks, name)
	}
}
