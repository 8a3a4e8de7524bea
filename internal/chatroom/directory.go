package chatroom

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

// DefaultRoomListName is the namespace used when none is configured.
const DefaultRoomListName = "default"

// UserDirectory answers whether an alias belongs to a registered user.
type UserDirectory interface {
	IsRegistered(ctx context.Context, alias string) (bool, error)
	ListAliases(ctx context.Context) ([]string, error)
}

// RoomList tracks the rooms of one namespace and persists a directory
// document listing them. Like ChatRoom it does no locking of its own.
type RoomList struct {
	name       string
	createTime time.Time
	modifyTime time.Time
	dirty      bool
	stored     bool

	rooms   []*ChatRoom
	lists   repository.RoomListRepository
	users   UserDirectory
	backend Backend
	log     logger.Logger
}

// LoadRoomList restores the directory called name, or starts an empty dirty
// one when storage has no document for it.
func LoadRoomList(ctx context.Context, name string, lists repository.RoomListRepository, users UserDirectory, backend Backend) (*RoomList, error) {
	if name == "" {
		name = DefaultRoomListName
	}
	l := &RoomList{
		name:    name,
		lists:   lists,
		users:   users,
		backend: backend,
		log:     backend.Log.With("room_list", name),
	}

	found, err := l.restore(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		now := time.Now()
		l.createTime = now
		l.modifyTime = now
		l.dirty = true
		l.log.Info("Starting empty room list")
	}
	return l, nil
}

func (l *RoomList) Name() string { return l.name }
func (l *RoomList) Dirty() bool  { return l.dirty }

// Create builds a new room that is not yet tracked; call Add to track it.
// It returns nil when storage already holds a room with that name.
func (l *RoomList) Create(ctx context.Context, roomName, owner string, members []string, roomType domain.RoomType) (*ChatRoom, error) {
	if roomName == "" || owner == "" {
		return nil, fmt.Errorf("room name and owner are required: %w", apperrors.ErrBadRequest)
	}
	if !roomType.Valid() {
		return nil, fmt.Errorf("unknown room type %q: %w", roomType, apperrors.ErrBadRequest)
	}

	exists, err := l.backend.Rooms.Exists(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if exists || l.Get(roomName) != nil {
		l.log.Debug("Room already exists", "room", roomName)
		return nil, nil
	}

	return NewChatRoom(roomName, owner, members, roomType, l.backend), nil
}

// Add tracks room and persists the directory. A room whose name is already
// tracked is ignored.
func (l *RoomList) Add(ctx context.Context, room *ChatRoom) error {
	if room == nil || l.Get(room.Name()) != nil {
		return nil
	}
	l.rooms = append(l.rooms, room)
	l.markDirty()
	l.log.Debug("Room added", "room", room.Name())
	return l.persist(ctx)
}

// Remove stops tracking roomName and persists the directory. The room's own
// documents are left in storage.
func (l *RoomList) Remove(ctx context.Context, roomName string) error {
	i := l.findPos(roomName)
	if i < 0 {
		l.log.Debug("Room not in list", "room", roomName)
		return nil
	}
	l.rooms = slices.Delete(l.rooms, i, i+1)
	l.markDirty()
	l.log.Debug("Room removed", "room", roomName)
	return l.persist(ctx)
}

// Refresh re-persists the directory after a tracked room changed its
// metadata, so the stored snapshots follow.
func (l *RoomList) Refresh(ctx context.Context) error {
	l.markDirty()
	return l.persist(ctx)
}

// Get returns the tracked room called roomName, or nil.
func (l *RoomList) Get(roomName string) *ChatRoom {
	if i := l.findPos(roomName); i >= 0 {
		return l.rooms[i]
	}
	return nil
}

// Rooms returns the tracked rooms in the order they were added.
func (l *RoomList) Rooms() []*ChatRoom {
	return slices.Clone(l.rooms)
}

// Metadata returns the directory snapshot for one tracked room.
func (l *RoomList) Metadata(roomName string) *domain.RoomSnapshot {
	room := l.Get(roomName)
	if room == nil {
		return nil
	}
	snap := room.Snapshot()
	return &snap
}

// FindByMember returns the rooms listing alias as a member. Unregistered
// aliases get an empty result.
func (l *RoomList) FindByMember(ctx context.Context, alias string) ([]*ChatRoom, error) {
	return l.findRegistered(ctx, alias, func(r *ChatRoom) bool { return r.IsMember(alias) })
}

// FindByOwner returns the rooms owned by alias. Unregistered aliases get an
// empty result.
func (l *RoomList) FindByOwner(ctx context.Context, alias string) ([]*ChatRoom, error) {
	return l.findRegistered(ctx, alias, func(r *ChatRoom) bool { return r.Owner() == alias })
}

func (l *RoomList) findRegistered(ctx context.Context, alias string, match func(*ChatRoom) bool) ([]*ChatRoom, error) {
	found := []*ChatRoom{}
	registered, err := l.users.IsRegistered(ctx, alias)
	if err != nil {
		return found, err
	}
	if !registered {
		l.log.Debug("Alias is not a registered user", "alias", alias)
		return found, nil
	}
	for _, room := range l.rooms {
		if match(room) {
			found = append(found, room)
		}
	}
	return found, nil
}

func (l *RoomList) findPos(roomName string) int {
	return slices.IndexFunc(l.rooms, func(r *ChatRoom) bool { return r.Name() == roomName })
}

func (l *RoomList) markDirty() {
	l.dirty = true
	l.modifyTime = time.Now()
}

func (l *RoomList) document() *domain.RoomListMetadata {
	snapshots := make([]domain.RoomSnapshot, 0, len(l.rooms))
	for _, room := range l.rooms {
		snapshots = append(snapshots, room.Snapshot())
	}
	return &domain.RoomListMetadata{
		ListName:      l.name,
		CreateTime:    l.createTime,
		ModifyTime:    l.modifyTime,
		RoomsMetadata: snapshots,
	}
}

func (l *RoomList) persist(ctx context.Context) error {
	doc := l.document()

	if !l.stored {
		exists, err := l.lists.Exists(ctx, l.name)
		if err != nil {
			return fmt.Errorf("persist room list %s: %w", l.name, err)
		}
		if !exists {
			if err := l.lists.Insert(ctx, doc); err != nil {
				return fmt.Errorf("persist room list %s: %w", l.name, err)
			}
			l.stored = true
			l.dirty = false
			return nil
		}
		l.stored = true
	}

	if l.dirty {
		if err := l.lists.Replace(ctx, doc); err != nil {
			return fmt.Errorf("persist room list %s: %w", l.name, err)
		}
	}
	l.dirty = false
	return nil
}

func (l *RoomList) restore(ctx context.Context) (bool, error) {
	meta, err := l.lists.Get(ctx, l.name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("restore room list %s: %w", l.name, err)
	}

	l.createTime = meta.CreateTime
	l.modifyTime = meta.ModifyTime
	l.stored = true
	l.dirty = false

	for _, snap := range meta.RoomsMetadata {
		if l.Get(snap.RoomName) != nil {
			continue
		}
		room, found, err := LoadChatRoom(ctx, snap.RoomName, l.backend)
		if err != nil {
			return false, err
		}
		if !found {
			// listed but never persisted on its own: rebuild from the snapshot
			l.log.Warn("Room listed without a room document, recreating from snapshot", "room", snap.RoomName)
			room = NewChatRoom(snap.RoomName, snap.OwnerAlias, snap.MemberList, snap.RoomType, l.backend)
		}
		l.rooms = append(l.rooms, room)
	}

	l.log.Info("Room list restored", "rooms", len(l.rooms))
	return true, nil
}
