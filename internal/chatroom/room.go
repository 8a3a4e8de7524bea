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

// AllMessages asks GetMessages for the whole log.
const AllMessages = -1

// Backend bundles the stores a room talks to.
type Backend struct {
	Rooms    repository.RoomRepository
	Sequence repository.SequenceRepository
	Log      logger.Logger
	// MaxMessages caps the in-memory log; only persisted entries are evicted.
	// Zero keeps everything.
	MaxMessages int
}

// MessagePage is the result of GetMessages. Messages is nil when the caller
// did not ask for message objects.
type MessagePage struct {
	Texts    []string
	Messages []*domain.ChatMessage
	Total    int
}

// ChatRoom is one room's message log plus its metadata. It does no locking:
// callers serialize Send, Persist and membership changes per room, and keep
// reads from overlapping those.
type ChatRoom struct {
	name       string
	roomType   domain.RoomType
	owner      string
	members    []string
	createTime time.Time
	modifyTime time.Time

	dirty  bool
	stored bool

	messages messageLog
	backend  Backend
	log      logger.Logger
}

// NewChatRoom builds a room that does not exist in storage yet. The owner is
// always added to the member list.
func NewChatRoom(name, owner string, members []string, roomType domain.RoomType, backend Backend) *ChatRoom {
	now := time.Now()
	return &ChatRoom{
		name:       name,
		roomType:   roomType,
		owner:      owner,
		members:    domain.NormalizeMembers(owner, members),
		createTime: now,
		modifyTime: now,
		dirty:      true,
		backend:    backend,
		log:        backend.Log.With("room", name),
	}
}

// LoadChatRoom restores a room by name. found is false when storage has no
// metadata for it; the returned room is nil in that case.
func LoadChatRoom(ctx context.Context, name string, backend Backend) (*ChatRoom, bool, error) {
	room := &ChatRoom{
		name:    name,
		backend: backend,
		log:     backend.Log.With("room", name),
	}
	found, err := room.Restore(ctx)
	if err != nil || !found {
		return nil, found, err
	}
	return room, true, nil
}

func (r *ChatRoom) Name() string               { return r.name }
func (r *ChatRoom) Type() domain.RoomType      { return r.roomType }
func (r *ChatRoom) Owner() string              { return r.owner }
func (r *ChatRoom) Members() []string          { return slices.Clone(r.members) }
func (r *ChatRoom) NumMessages() int           { return r.messages.len() }
func (r *ChatRoom) Dirty() bool                { return r.dirty }
func (r *ChatRoom) CreateTime() time.Time      { return r.createTime }
func (r *ChatRoom) ModifyTime() time.Time      { return r.modifyTime }
func (r *ChatRoom) IsMember(alias string) bool { return slices.Contains(r.members, alias) }

// CanAccess reports whether alias may read or write the room.
func (r *ChatRoom) CanAccess(alias string) bool {
	return r.roomType != domain.RoomTypePrivate || r.IsMember(alias)
}

func (r *ChatRoom) Metadata() domain.RoomMetadata {
	return domain.RoomMetadata{
		RoomName:   r.name,
		OwnerAlias: r.owner,
		RoomType:   r.roomType,
		MemberList: r.Members(),
		CreateTime: r.createTime,
		ModifyTime: r.modifyTime,
	}
}

func (r *ChatRoom) Snapshot() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		RoomName:   r.name,
		RoomType:   r.roomType,
		OwnerAlias: r.owner,
		MemberList: r.Members(),
	}
}

// AddMember adds alias to the member list and marks the room dirty.
// It returns false when alias is already a member.
func (r *ChatRoom) AddMember(alias string) bool {
	if alias == "" || r.IsMember(alias) {
		return false
	}
	r.members = append(r.members, alias)
	r.markDirty()
	return true
}

// RemoveMember drops alias from the member list. The owner cannot be removed.
func (r *ChatRoom) RemoveMember(alias string) bool {
	if alias == r.owner {
		return false
	}
	i := slices.Index(r.members, alias)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	r.markDirty()
	return true
}

func (r *ChatRoom) markDirty() {
	r.dirty = true
	r.modifyTime = time.Now()
}

// Send appends a new message at the write end and persists the room before
// returning. It returns false without touching the log when props is nil,
// text is empty, or the sender is not a member of a private room. A true
// result with a non-nil error means the message is in the log but still
// dirty; the next Persist retries it.
func (r *ChatRoom) Send(ctx context.Context, text, fromAlias string, props *domain.MessageProperties) (bool, error) {
	if props == nil {
		r.log.Warn("No message properties given, message rejected", "from", fromAlias)
		return false, nil
	}
	if text == "" {
		r.log.Debug("Empty message rejected", "from", fromAlias)
		return false, nil
	}
	if !r.CanAccess(fromAlias) {
		r.log.Debug("Non-member rejected from private room", "from", fromAlias)
		return false, nil
	}

	msg := domain.NewChatMessage(text, props)
	r.messages.put(msg)
	r.log.Debug("Message appended", "from", fromAlias, "messages", r.messages.len())

	if err := r.Persist(ctx); err != nil && msg.Dirty() {
		return true, err
	}
	return true, nil
}

// Receive returns the read-end message without removing it, or nil.
func (r *ChatRoom) Receive() *domain.ChatMessage {
	return r.messages.peek()
}

// Latest returns the write-end message, or nil.
func (r *ChatRoom) Latest() *domain.ChatMessage {
	return r.messages.newest()
}

// Find returns the newest message whose text equals text, or nil.
func (r *ChatRoom) Find(text string) *domain.ChatMessage {
	var found *domain.ChatMessage
	r.messages.newestFirst(func(m *domain.ChatMessage) bool {
		if m.Text() == text {
			found = m
			return false
		}
		return true
	})
	return found
}

// GetMessages returns up to count messages starting at the read end, or the
// whole log for AllMessages. Results are always ordered oldest to newest.
// Non-members of a private room get an empty page.
func (r *ChatRoom) GetMessages(callerAlias string, count int, includeObjects bool) MessagePage {
	page := MessagePage{Texts: []string{}}
	if includeObjects {
		page.Messages = []*domain.ChatMessage{}
	}
	if !r.CanAccess(callerAlias) {
		r.log.Warn("Non-member asked for private room messages", "alias", callerAlias)
		return page
	}

	limit := r.messages.len()
	if count != AllMessages && count < limit {
		limit = max(count, 0)
	}

	r.messages.oldestFirst(func(m *domain.ChatMessage) bool {
		if len(page.Texts) >= limit {
			return false
		}
		page.Texts = append(page.Texts, m.Text())
		if includeObjects {
			page.Messages = append(page.Messages, m)
		}
		return true
	})
	page.Total = len(page.Texts)
	return page
}

// Restore loads metadata and replays stored messages in sequence order.
// It returns false when the room has no metadata document.
func (r *ChatRoom) Restore(ctx context.Context) (bool, error) {
	meta, err := r.backend.Rooms.GetMetadata(ctx, r.name)
	if err != nil {
		if errors.Is(err, apperrors.ErrRoomNotFound) {
			r.log.Debug("Room metadata not found, nothing to restore")
			return false, nil
		}
		return false, fmt.Errorf("restore room %s: %w", r.name, err)
	}

	docs, err := r.backend.Rooms.ListMessages(ctx, r.name)
	if err != nil {
		return false, fmt.Errorf("restore room %s messages: %w", r.name, err)
	}

	r.name = meta.RoomName
	r.owner = meta.OwnerAlias
	r.roomType = meta.RoomType
	r.members = domain.NormalizeMembers(meta.OwnerAlias, meta.MemberList)
	r.createTime = meta.CreateTime
	r.modifyTime = meta.ModifyTime
	r.dirty = false
	r.stored = true

	r.messages.reset()
	for _, doc := range docs {
		r.messages.put(domain.RestoreChatMessage(doc))
	}
	r.applyRetention()

	r.log.Info("Room restored", "messages", len(docs))
	return true, nil
}

// Persist writes the metadata document when missing or dirty, then stores
// every dirty message oldest first. A message without a sequence number gets
// one first; when allocation fails the pass stops there so numbers keep
// following log order. A failed insert only leaves that message dirty and
// the pass moves on. Every failure is returned joined. With nothing dirty it
// performs no writes.
func (r *ChatRoom) Persist(ctx context.Context) error {
	if err := r.persistMetadata(ctx); err != nil {
		return err
	}

	var (
		written int
		errs    []error
	)
	r.messages.oldestFirst(func(m *domain.ChatMessage) bool {
		if !m.Dirty() {
			return true
		}
		if !m.Properties().HasSequence() {
			if err := r.allocateSequence(ctx, m); err != nil {
				errs = append(errs, err)
				return false
			}
		}
		if err := r.persistMessage(ctx, m); err != nil {
			r.log.Warn("Message left dirty", "error", err, "sequence", m.Properties().SequenceNumber())
			errs = append(errs, err)
			return true
		}
		written++
		return true
	})

	if written > 0 {
		r.log.Debug("Messages persisted", "count", written)
	}
	r.applyRetention()

	if len(errs) > 0 {
		err := errors.Join(errs...)
		r.log.Error("Persist pass incomplete", "error", err, "written", written, "failed", len(errs))
		return err
	}
	return nil
}

func (r *ChatRoom) persistMetadata(ctx context.Context) error {
	meta := r.Metadata()

	if !r.stored {
		exists, err := r.backend.Rooms.Exists(ctx, r.name)
		if err != nil {
			return fmt.Errorf("persist room %s: %w", r.name, err)
		}
		if !exists {
			err := r.backend.Rooms.InsertMetadata(ctx, &meta)
			if err == nil {
				r.stored = true
				r.dirty = false
				return nil
			}
			if !errors.Is(err, apperrors.ErrRoomAlreadyExists) {
				return fmt.Errorf("persist room %s: %w", r.name, err)
			}
		}
		r.stored = true
	}

	if r.dirty {
		if err := r.backend.Rooms.ReplaceMetadata(ctx, &meta); err != nil {
			return fmt.Errorf("persist room %s: %w", r.name, err)
		}
	}
	r.dirty = false
	return nil
}

func (r *ChatRoom) allocateSequence(ctx context.Context, m *domain.ChatMessage) error {
	n, err := r.backend.Sequence.Next(ctx, r.name)
	if err != nil {
		return err
	}
	if err := m.Properties().SetSequenceNumber(n); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrSequenceAllocation, err)
	}
	return nil
}

// persistMessage inserts a numbered message. An insert refused because the
// room already holds its sequence number means an earlier attempt was
// committed; the stored identity is adopted instead.
func (r *ChatRoom) persistMessage(ctx context.Context, m *domain.ChatMessage) error {
	if m.Durable() {
		exists, err := r.backend.Rooms.MessageExists(ctx, r.name, m.ID())
		if err != nil {
			return err
		}
		if exists {
			m.MarkClean()
			return nil
		}
	}

	doc := m.Document()
	doc.ID = 0
	id, err := r.backend.Rooms.InsertMessage(ctx, r.name, &doc)
	if errors.Is(err, apperrors.ErrMessageStored) {
		id, err = r.backend.Rooms.MessageIDBySequence(ctx, r.name, doc.Props.SequenceNum)
	}
	if err != nil {
		return err
	}
	m.MarkPersisted(id)
	return nil
}

// applyRetention evicts clean entries from the read end while the log is
// over the configured cap.
func (r *ChatRoom) applyRetention() {
	limit := r.backend.MaxMessages
	if limit <= 0 {
		return
	}
	evicted := 0
	for r.messages.len() > limit {
		oldest := r.messages.peek()
		if oldest == nil || oldest.Dirty() {
			break
		}
		r.messages.evictOldest()
		evicted++
	}
	if evicted > 0 {
		r.log.Debug("Evicted persisted messages from memory", "count", evicted)
	}
}
