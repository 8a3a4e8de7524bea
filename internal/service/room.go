package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat_backend/internal/chatroom"
	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

const maxRoomNameLength = 128

type RoomService interface {
	Create(ctx context.Context, owner, name string, members []string, roomType domain.RoomType) (*domain.RoomMetadata, error)
	Get(ctx context.Context, alias, name string) (*domain.RoomMetadata, error)
	List(ctx context.Context) ([]domain.RoomSnapshot, error)
	FindByMember(ctx context.Context, alias string) ([]domain.RoomSnapshot, error)
	FindByOwner(ctx context.Context, alias string) ([]domain.RoomSnapshot, error)
	// Delete stops tracking the room. Only the owner may do it.
	Delete(ctx context.Context, alias, name string) error
	AddMember(ctx context.Context, alias, name, member string) (*domain.RoomMetadata, error)
	// RemoveMember lets the owner drop anyone but themselves, and members leave.
	RemoveMember(ctx context.Context, alias, name, member string) (*domain.RoomMetadata, error)
	// Events returns the room's audit trail to its owner.
	Events(ctx context.Context, alias, name string, limit int) ([]domain.AuditEvent, error)
}

type roomService struct {
	rooms     *roomRegistry
	users     UserService
	audit     AuditService
	opTimeout time.Duration
	log       logger.Logger
}

func newRoomService(rooms *roomRegistry, users UserService, audit AuditService, opTimeout time.Duration, log logger.Logger) RoomService {
	return &roomService{
		rooms:     rooms,
		users:     users,
		audit:     audit,
		opTimeout: opTimeout,
		log:       log,
	}
}

func (s *roomService) Create(ctx context.Context, owner, name string, members []string, roomType domain.RoomType) (*domain.RoomMetadata, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("room name is required: %w", apperrors.ErrBadRequest)
	}
	if len(name) > maxRoomNameLength {
		return nil, fmt.Errorf("room name is too long (max %d characters): %w", maxRoomNameLength, apperrors.ErrBadRequest)
	}
	if roomType == "" {
		roomType = domain.RoomTypePublic
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	var meta domain.RoomMetadata
	err := s.rooms.directory(func(list *chatroom.RoomList) error {
		room, err := list.Create(ctx, name, owner, members, roomType)
		if err != nil {
			return err
		}
		if room == nil {
			return apperrors.ErrRoomAlreadyExists
		}
		if err := room.Persist(ctx); err != nil {
			return err
		}
		if err := list.Add(ctx, room); err != nil {
			return err
		}
		meta = room.Metadata()
		return nil
	})
	if err != nil {
		s.log.Warn("Failed to create room", "error", err, "room", name, "owner", owner)
		return nil, err
	}

	s.audit.LogEvent(ctx, owner, name, domain.EventTypeRoomCreated, map[string]any{
		"room_type":   string(roomType),
		"member_list": meta.MemberList,
	})
	s.log.Info("Room created", "room", name, "owner", owner, "type", roomType)
	return &meta, nil
}

func (s *roomService) Get(ctx context.Context, alias, name string) (*domain.RoomMetadata, error) {
	var meta domain.RoomMetadata
	err := s.rooms.read(name, func(room *chatroom.ChatRoom) error {
		if !room.CanAccess(alias) {
			return apperrors.ErrForbidden
		}
		meta = room.Metadata()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *roomService) List(ctx context.Context) ([]domain.RoomSnapshot, error) {
	var snapshots []domain.RoomSnapshot
	err := s.rooms.directoryRead(func(list *chatroom.RoomList) error {
		snapshots = snapshotsOf(list.Rooms())
		return nil
	})
	return snapshots, err
}

func (s *roomService) FindByMember(ctx context.Context, alias string) ([]domain.RoomSnapshot, error) {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	var snapshots []domain.RoomSnapshot
	err := s.rooms.directoryRead(func(list *chatroom.RoomList) error {
		found, err := list.FindByMember(ctx, alias)
		snapshots = snapshotsOf(found)
		return err
	})
	return snapshots, err
}

func (s *roomService) FindByOwner(ctx context.Context, alias string) ([]domain.RoomSnapshot, error) {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	var snapshots []domain.RoomSnapshot
	err := s.rooms.directoryRead(func(list *chatroom.RoomList) error {
		found, err := list.FindByOwner(ctx, alias)
		snapshots = snapshotsOf(found)
		return err
	})
	return snapshots, err
}

func (s *roomService) Delete(ctx context.Context, alias, name string) error {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.rooms.directory(func(list *chatroom.RoomList) error {
		room := list.Get(name)
		if room == nil {
			return apperrors.ErrRoomNotFound
		}
		if room.Owner() != alias {
			return fmt.Errorf("only the owner can delete a room: %w", apperrors.ErrForbidden)
		}
		// wait out any send still persisting into the room
		lock := s.rooms.lockFor(name)
		lock.Lock()
		defer lock.Unlock()

		if err := list.Remove(ctx, name); err != nil {
			return err
		}
		s.rooms.forget(name)
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.LogEvent(ctx, alias, name, domain.EventTypeRoomRemoved, nil)
	s.log.Info("Room removed from list", "room", name, "by", alias)
	return nil
}

func (s *roomService) AddMember(ctx context.Context, alias, name, member string) (*domain.RoomMetadata, error) {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	registered, err := s.users.IsRegistered(ctx, member)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, fmt.Errorf("alias %q is not registered: %w", member, apperrors.ErrUserNotFound)
	}

	meta, changed, err := s.changeMembers(ctx, name, func(room *chatroom.ChatRoom) (bool, error) {
		if room.Owner() != alias {
			return false, fmt.Errorf("only the owner can add members: %w", apperrors.ErrForbidden)
		}
		return room.AddMember(member), nil
	})
	if changed {
		s.audit.LogEvent(ctx, alias, name, domain.EventTypeMemberAdded, map[string]any{"member": member})
	}
	return meta, err
}

func (s *roomService) RemoveMember(ctx context.Context, alias, name, member string) (*domain.RoomMetadata, error) {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	meta, changed, err := s.changeMembers(ctx, name, func(room *chatroom.ChatRoom) (bool, error) {
		if room.Owner() != alias && member != alias {
			return false, fmt.Errorf("only the owner can remove other members: %w", apperrors.ErrForbidden)
		}
		if member == room.Owner() {
			return false, fmt.Errorf("the owner cannot leave their room: %w", apperrors.ErrBadRequest)
		}
		return room.RemoveMember(member), nil
	})
	if changed {
		s.audit.LogEvent(ctx, alias, name, domain.EventTypeMemberRemoved, map[string]any{"member": member})
	}
	return meta, err
}

func (s *roomService) Events(ctx context.Context, alias, name string, limit int) ([]domain.AuditEvent, error) {
	err := s.rooms.read(name, func(room *chatroom.ChatRoom) error {
		if room.Owner() != alias {
			return fmt.Errorf("only the owner can read the audit trail: %w", apperrors.ErrForbidden)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.audit.RoomEvents(ctx, name, limit)
}

// changeMembers applies change under the directory lock and the room lock,
// then persists the room and refreshes the directory snapshot. changed is
// true only when the new member list reached storage.
func (s *roomService) changeMembers(ctx context.Context, name string, change func(*chatroom.ChatRoom) (bool, error)) (*domain.RoomMetadata, bool, error) {
	var (
		meta    domain.RoomMetadata
		changed bool
	)
	err := s.rooms.directory(func(list *chatroom.RoomList) error {
		room := list.Get(name)
		if room == nil {
			return apperrors.ErrRoomNotFound
		}
		lock := s.rooms.lockFor(name)
		lock.Lock()
		defer lock.Unlock()

		modified, err := change(room)
		if err != nil {
			return err
		}
		if modified {
			if err := room.Persist(ctx); err != nil {
				return err
			}
			changed = true
			if err := list.Refresh(ctx); err != nil {
				return err
			}
		}
		meta = room.Metadata()
		return nil
	})
	if err != nil {
		return nil, changed, err
	}
	return &meta, changed, nil
}

func snapshotsOf(rooms []*chatroom.ChatRoom) []domain.RoomSnapshot {
	snapshots := make([]domain.RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		snapshots = append(snapshots, room.Snapshot())
	}
	return snapshots
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
