package chatroom

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

// recordingRooms counts writes and can fail message inserts on demand.
type recordingRooms struct {
	repository.RoomRepository
	metaWrites    int
	messageWrites int
	failInsertAt  int // 1-based insert attempt that fails; 0 disables
	lostAckAt     int // 1-based insert attempt that is stored but reported as failed
	reject        func(*domain.MessageDocument) bool
	attempts      int
}

func (r *recordingRooms) InsertMetadata(ctx context.Context, meta *domain.RoomMetadata) error {
	r.metaWrites++
	return r.RoomRepository.InsertMetadata(ctx, meta)
}

func (r *recordingRooms) ReplaceMetadata(ctx context.Context, meta *domain.RoomMetadata) error {
	r.metaWrites++
	return r.RoomRepository.ReplaceMetadata(ctx, meta)
}

func (r *recordingRooms) InsertMessage(ctx context.Context, roomName string, doc *domain.MessageDocument) (int64, error) {
	r.attempts++
	if r.failInsertAt != 0 && r.attempts == r.failInsertAt {
		return 0, errors.Join(apperrors.ErrStorageUnavailable, errors.New("write timed out"))
	}
	if r.reject != nil && r.reject(doc) {
		return 0, errors.Join(apperrors.ErrStorageUnavailable, errors.New("invalid byte sequence for encoding UTF8: 0x00"))
	}
	r.messageWrites++
	id, err := r.RoomRepository.InsertMessage(ctx, roomName, doc)
	if err == nil && r.lostAckAt != 0 && r.attempts == r.lostAckAt {
		return 0, errors.Join(apperrors.ErrStorageUnavailable, errors.New("connection reset after commit"))
	}
	return id, err
}

func rejectNUL(doc *domain.MessageDocument) bool {
	return strings.ContainsRune(doc.Message, 0)
}

type failingSequence struct{}

func (failingSequence) Next(_ context.Context, roomName string) (int64, error) {
	return 0, errors.Join(apperrors.ErrSequenceAllocation, errors.New("counter store down"))
}

func newBackend() (Backend, *recordingRooms) {
	rooms := &recordingRooms{RoomRepository: repository.NewMemoryRoomRepository()}
	return Backend{
		Rooms:    rooms,
		Sequence: repository.NewMemorySequenceRepository(),
		Log:      logger.Nop(),
	}, rooms
}

func props(room, from string) *domain.MessageProperties {
	now := time.Now()
	return domain.NewMessageProperties(room, "", from, domain.MessageTypeUser, now, now)
}

func send(t *testing.T, room *ChatRoom, from, text string) {
	t.Helper()
	ok, err := room.Send(context.Background(), text, from, props(room.Name(), from))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestChatRoom_NewRoomIncludesOwner(t *testing.T) {
	backend, _ := newBackend()
	room := NewChatRoom("general", "alice", []string{"bob", "bob"}, domain.RoomTypePublic, backend)

	assert.ElementsMatch(t, []string{"alice", "bob"}, room.Members())
	assert.True(t, room.Dirty())
	assert.Equal(t, 0, room.NumMessages())
	assert.Nil(t, room.Receive())
}

func TestChatRoom_SendAndRead(t *testing.T) {
	backend, _ := newBackend()
	room := NewChatRoom("general", "alice", []string{"bob"}, domain.RoomTypePublic, backend)

	send(t, room, "alice", "hi all")
	send(t, room, "bob", "hey")

	assert.Equal(t, 2, room.NumMessages())
	assert.Equal(t, "hi all", room.Receive().Text())

	page := room.GetMessages("alice", AllMessages, false)
	assert.Equal(t, []string{"hi all", "hey"}, page.Texts)
	assert.Nil(t, page.Messages)
	assert.Equal(t, 2, page.Total)

	page = room.GetMessages("alice", 1, true)
	assert.Equal(t, []string{"hi all"}, page.Texts)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "alice", page.Messages[0].Properties().FromUser())

	page = room.GetMessages("alice", 10, false)
	assert.Len(t, page.Texts, 2)

	page = room.GetMessages("alice", -7, false)
	assert.Empty(t, page.Texts)
}

func TestChatRoom_SequenceNumbersIncrease(t *testing.T) {
	backend, _ := newBackend()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)

	for _, text := range []string{"one", "two", "three", "four"} {
		send(t, room, "alice", text)
	}

	page := room.GetMessages("alice", AllMessages, true)
	require.Len(t, page.Messages, 4)
	prev := int64(0)
	for _, m := range page.Messages {
		assert.False(t, m.Dirty())
		assert.True(t, m.Durable())
		assert.Greater(t, m.Properties().SequenceNumber(), prev)
		prev = m.Properties().SequenceNumber()
	}
}

func TestChatRoom_SendRejectsInvalidInput(t *testing.T) {
	backend, rooms := newBackend()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)
	ctx := context.Background()

	tests := []struct {
		name  string
		text  string
		from  string
		props *domain.MessageProperties
	}{
		{name: "nil properties", text: "hi", from: "alice", props: nil},
		{name: "empty text", text: "", from: "alice", props: props("general", "alice")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := room.Send(ctx, tt.text, tt.from, tt.props)
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
	assert.Equal(t, 0, room.NumMessages())
	assert.Zero(t, rooms.metaWrites)
}

func TestChatRoom_SendKeepsCallerProperties(t *testing.T) {
	backend, rooms := newBackend()
	room := NewChatRoom("general", "alice", []string{"bob"}, domain.RoomTypePublic, backend)
	ctx := context.Background()

	ok, err := room.Send(ctx, "hi all", "bob", props("general", "carol"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "carol", room.Latest().Properties().FromUser())

	// stored under this room whatever the properties name
	ok, err = room.Send(ctx, "forwarded", "bob", props("random", "bob"))
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := rooms.ListMessages(ctx, "general")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "forwarded", stored[1].Message)
}

func TestChatRoom_PrivateRoomAccess(t *testing.T) {
	backend, _ := newBackend()
	room := NewChatRoom("secret", "alice", []string{"bob"}, domain.RoomTypePrivate, backend)
	send(t, room, "bob", "psst")

	ok, err := room.Send(context.Background(), "let me in", "eve", props("secret", "eve"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, room.NumMessages())

	page := room.GetMessages("eve", AllMessages, true)
	assert.Empty(t, page.Texts)
	assert.Empty(t, page.Messages)
	assert.Equal(t, 0, page.Total)

	page = room.GetMessages("bob", AllMessages, false)
	assert.Equal(t, []string{"psst"}, page.Texts)
}

func TestChatRoom_PublicRoomAcceptsNonMembers(t *testing.T) {
	backend, _ := newBackend()
	room := NewChatRoom("lobby", "alice", nil, domain.RoomTypePublic, backend)
	send(t, room, "carol", "hello")

	assert.Equal(t, []string{"hello"}, room.GetMessages("dave", AllMessages, false).Texts)
}

func TestChatRoom_FindReturnsNewestMatch(t *testing.T) {
	backend, _ := newBackend()
	room := NewChatRoom("general", "alice", []string{"bob"}, domain.RoomTypePublic, backend)
	send(t, room, "alice", "ping")
	send(t, room, "bob", "pong")
	send(t, room, "bob", "ping")

	found := room.Find("ping")
	require.NotNil(t, found)
	assert.Equal(t, "bob", found.Properties().FromUser())
	assert.Nil(t, room.Find("missing"))
}

func TestChatRoom_PersistIsIdempotent(t *testing.T) {
	backend, rooms := newBackend()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)
	ctx := context.Background()

	send(t, room, "alice", "hi")
	metaWrites, messageWrites := rooms.metaWrites, rooms.messageWrites
	assert.Equal(t, 1, metaWrites)
	assert.Equal(t, 1, messageWrites)

	require.NoError(t, room.Persist(ctx))
	require.NoError(t, room.Persist(ctx))
	assert.Equal(t, metaWrites, rooms.metaWrites)
	assert.Equal(t, messageWrites, rooms.messageWrites)

	require.True(t, room.AddMember("bob"))
	require.NoError(t, room.Persist(ctx))
	assert.Equal(t, metaWrites+1, rooms.metaWrites)
	assert.Equal(t, messageWrites, rooms.messageWrites)
}

func TestChatRoom_RestoreRoundTrip(t *testing.T) {
	backend, _ := newBackend()
	ctx := context.Background()

	room := NewChatRoom("general", "alice", []string{"bob"}, domain.RoomTypePrivate, backend)
	send(t, room, "alice", "first")
	send(t, room, "bob", "second")

	restored, found, err := LoadChatRoom(ctx, "general", backend)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "alice", restored.Owner())
	assert.Equal(t, domain.RoomTypePrivate, restored.Type())
	assert.ElementsMatch(t, []string{"alice", "bob"}, restored.Members())
	assert.False(t, restored.Dirty())

	original := room.GetMessages("alice", AllMessages, true)
	again := restored.GetMessages("alice", AllMessages, true)
	assert.Equal(t, original.Texts, again.Texts)
	require.Len(t, again.Messages, 2)
	assert.Equal(t, "bob", again.Messages[1].Properties().FromUser())
	for i := range original.Messages {
		assert.Equal(t, original.Messages[i].ID(), again.Messages[i].ID())
		assert.Equal(t, original.Messages[i].Properties().SequenceNumber(), again.Messages[i].Properties().SequenceNumber())
		assert.Equal(t, original.Messages[i].Properties().FromUser(), again.Messages[i].Properties().FromUser())
		assert.False(t, again.Messages[i].Dirty())
	}
}

func TestChatRoom_RestoreMissingRoom(t *testing.T) {
	backend, _ := newBackend()
	room, found, err := LoadChatRoom(context.Background(), "nowhere", backend)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, room)
}

func TestChatRoom_PartialFailureRetries(t *testing.T) {
	backend, rooms := newBackend()
	ctx := context.Background()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)
	send(t, room, "alice", "one")

	rooms.failInsertAt = rooms.attempts + 1
	ok, err := room.Send(ctx, "two", "alice", props("general", "alice"))
	assert.True(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)

	page := room.GetMessages("alice", AllMessages, true)
	require.Len(t, page.Messages, 2)
	failed := page.Messages[1]
	assert.True(t, failed.Dirty())
	assert.False(t, failed.Durable())
	seq := failed.Properties().SequenceNumber()
	assert.True(t, failed.Properties().HasSequence())

	rooms.failInsertAt = 0
	require.NoError(t, room.Persist(ctx))
	assert.False(t, failed.Dirty())
	assert.True(t, failed.Durable())
	assert.Equal(t, seq, failed.Properties().SequenceNumber())

	stored, err := rooms.ListMessages(ctx, "general")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "two", stored[1].Message)
}

func TestChatRoom_RetryKeepsSequenceOrder(t *testing.T) {
	backend, rooms := newBackend()
	ctx := context.Background()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)
	require.NoError(t, room.Persist(ctx))

	rooms.failInsertAt = rooms.attempts + 1
	ok, err := room.Send(ctx, "a", "alice", props("general", "alice"))
	require.True(t, ok)
	require.Error(t, err)

	// the next pass retries "a" first, then writes "b"
	send(t, room, "alice", "b")

	stored, err := rooms.ListMessages(ctx, "general")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "a", stored[0].Message)
	assert.Equal(t, "b", stored[1].Message)
	assert.Less(t, stored[0].Props.SequenceNum, stored[1].Props.SequenceNum)
}

func TestChatRoom_UnstorableMessageDoesNotBlockLaterOnes(t *testing.T) {
	backend, rooms := newBackend()
	rooms.reject = rejectNUL
	ctx := context.Background()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)

	ok, err := room.Send(ctx, "a\x00b", "alice", props("general", "alice"))
	require.True(t, ok)
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)

	for _, text := range []string{"good1", "good2", "good3"} {
		ok, err := room.Send(ctx, text, "alice", props("general", "alice"))
		require.True(t, ok)
		assert.NoError(t, err, text)
	}
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, room.Persist(ctx), apperrors.ErrStorageUnavailable)
	}

	stored, err := rooms.ListMessages(ctx, "general")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "good1", stored[0].Message)
	assert.Equal(t, "good3", stored[2].Message)

	poisoned := room.Receive()
	assert.True(t, poisoned.Dirty())
	assert.True(t, poisoned.Properties().HasSequence())
	assert.Less(t, poisoned.Properties().SequenceNumber(), stored[0].Props.SequenceNum)

	restored, found, err := LoadChatRoom(ctx, "general", backend)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"good1", "good2", "good3"}, restored.GetMessages("alice", AllMessages, false).Texts)
}

func TestChatRoom_RetryAdoptsCommittedInsert(t *testing.T) {
	backend, rooms := newBackend()
	ctx := context.Background()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)
	require.NoError(t, room.Persist(ctx))

	rooms.lostAckAt = rooms.attempts + 1
	ok, err := room.Send(ctx, "hello", "alice", props("general", "alice"))
	require.True(t, ok)
	require.Error(t, err)
	msg := room.Latest()
	assert.True(t, msg.Dirty())

	require.NoError(t, room.Persist(ctx))
	assert.False(t, msg.Dirty())
	assert.True(t, msg.Durable())

	stored, err := rooms.ListMessages(ctx, "general")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, stored[0].ID, msg.ID())
	assert.Equal(t, stored[0].Props.SequenceNum, msg.Properties().SequenceNumber())
}

func TestChatRoom_SequenceAllocationFailure(t *testing.T) {
	backend, rooms := newBackend()
	backend.Sequence = failingSequence{}
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)

	ok, err := room.Send(context.Background(), "hi", "alice", props("general", "alice"))
	assert.True(t, ok)
	assert.ErrorIs(t, err, apperrors.ErrSequenceAllocation)

	msg := room.Receive()
	require.NotNil(t, msg)
	assert.True(t, msg.Dirty())
	assert.False(t, msg.Properties().HasSequence())
	assert.Zero(t, rooms.messageWrites)
}

func TestChatRoom_RetentionEvictsPersistedOnly(t *testing.T) {
	backend, rooms := newBackend()
	backend.MaxMessages = 2
	ctx := context.Background()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePublic, backend)

	send(t, room, "alice", "one")
	send(t, room, "alice", "two")
	send(t, room, "alice", "three")
	assert.Equal(t, 2, room.NumMessages())
	assert.Equal(t, "two", room.Receive().Text())

	rooms.reject = func(*domain.MessageDocument) bool { return true }
	for _, text := range []string{"four", "five", "six"} {
		_, err := room.Send(ctx, text, "alice", props("general", "alice"))
		require.Error(t, err)
	}
	// three dirty entries stay even though the cap is two
	assert.Equal(t, 3, room.NumMessages())
	assert.Equal(t, "four", room.Receive().Text())

	rooms.reject = nil
	require.NoError(t, room.Persist(ctx))
	assert.Equal(t, 2, room.NumMessages())
	assert.Equal(t, []string{"five", "six"}, room.GetMessages("alice", AllMessages, false).Texts)
}

func TestChatRoom_Membership(t *testing.T) {
	backend, _ := newBackend()
	room := NewChatRoom("general", "alice", nil, domain.RoomTypePrivate, backend)
	require.NoError(t, room.Persist(context.Background()))
	assert.False(t, room.Dirty())

	assert.True(t, room.AddMember("bob"))
	assert.False(t, room.AddMember("bob"))
	assert.True(t, room.Dirty())
	assert.True(t, room.CanAccess("bob"))

	assert.False(t, room.RemoveMember("alice"))
	assert.True(t, room.RemoveMember("bob"))
	assert.False(t, room.RemoveMember("bob"))
	assert.False(t, room.CanAccess("bob"))
}
