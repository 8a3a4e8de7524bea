package domain

import (
	"fmt"
	"time"
)

type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeDirect MessageType = "direct"
	MessageTypeSystem MessageType = "system"
)

// SequenceUnset marks a message whose sequence number has not been allocated yet.
const SequenceUnset int64 = -1

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeUser, MessageTypeDirect, MessageTypeSystem:
		return true
	}
	return false
}

// MessageProperties carries routing and timing metadata for one message.
// Everything except the sequence number is fixed at construction.
type MessageProperties struct {
	roomName    string
	toUser      string
	fromUser    string
	messageType MessageType
	sequenceNum int64
	sentTime    time.Time
	recTime     time.Time
}

func NewMessageProperties(roomName, toUser, fromUser string, messageType MessageType, sentTime, recTime time.Time) *MessageProperties {
	return &MessageProperties{
		roomName:    roomName,
		toUser:      toUser,
		fromUser:    fromUser,
		messageType: messageType,
		sequenceNum: SequenceUnset,
		sentTime:    sentTime,
		recTime:     recTime,
	}
}

// RestoreMessageProperties rebuilds properties read back from storage,
// sequence number included.
func RestoreMessageProperties(doc MessagePropertiesDocument) *MessageProperties {
	return &MessageProperties{
		roomName:    doc.RoomName,
		toUser:      doc.ToUser,
		fromUser:    doc.FromUser,
		messageType: doc.MessageType,
		sequenceNum: doc.SequenceNum,
		sentTime:    doc.SentTime,
		recTime:     doc.RecTime,
	}
}

func (p *MessageProperties) RoomName() string         { return p.roomName }
func (p *MessageProperties) ToUser() string           { return p.toUser }
func (p *MessageProperties) FromUser() string         { return p.fromUser }
func (p *MessageProperties) MessageType() MessageType { return p.messageType }
func (p *MessageProperties) SequenceNumber() int64    { return p.sequenceNum }
func (p *MessageProperties) SentTime() time.Time      { return p.sentTime }
func (p *MessageProperties) RecTime() time.Time       { return p.recTime }

func (p *MessageProperties) HasSequence() bool {
	return p.sequenceNum != SequenceUnset
}

// SetSequenceNumber assigns the allocated number once. A second assignment
// is rejected so a retried insert keeps its original position.
func (p *MessageProperties) SetSequenceNumber(n int64) error {
	if p.HasSequence() {
		return fmt.Errorf("sequence number already assigned (%d)", p.sequenceNum)
	}
	if n < 0 {
		return fmt.Errorf("invalid sequence number %d", n)
	}
	p.sequenceNum = n
	return nil
}

func (p *MessageProperties) Document() MessagePropertiesDocument {
	return MessagePropertiesDocument{
		RoomName:    p.roomName,
		ToUser:      p.toUser,
		FromUser:    p.fromUser,
		MessageType: p.messageType,
		SentTime:    p.sentTime,
		RecTime:     p.recTime,
		SequenceNum: p.sequenceNum,
	}
}

// ChatMessage is one entry in a room log. ID is zero until the store has
// accepted the message.
type ChatMessage struct {
	text  string
	id    int64
	props *MessageProperties
	dirty bool
}

func NewChatMessage(text string, props *MessageProperties) *ChatMessage {
	return &ChatMessage{text: text, props: props, dirty: true}
}

// RestoreChatMessage rebuilds a durable, clean message from its stored document.
func RestoreChatMessage(doc MessageDocument) *ChatMessage {
	return &ChatMessage{
		text:  doc.Message,
		id:    doc.ID,
		props: RestoreMessageProperties(doc.Props),
		dirty: false,
	}
}

func (m *ChatMessage) Text() string                   { return m.text }
func (m *ChatMessage) ID() int64                      { return m.id }
func (m *ChatMessage) Properties() *MessageProperties { return m.props }
func (m *ChatMessage) Dirty() bool                    { return m.dirty }
func (m *ChatMessage) Durable() bool                  { return m.id != 0 }

// MarkPersisted records the storage identity and clears the dirty flag.
// Call it only after the store confirmed the write.
func (m *ChatMessage) MarkPersisted(id int64) {
	m.id = id
	m.dirty = false
}

// MarkClean clears the dirty flag of a message already known to the store.
func (m *ChatMessage) MarkClean() {
	m.dirty = false
}

func (m *ChatMessage) Document() MessageDocument {
	return MessageDocument{
		ID:      m.id,
		Message: m.text,
		Props:   m.props.Document(),
	}
}

func (m *ChatMessage) String() string {
	return fmt.Sprintf("chat message %q from %s (seq %d)", m.text, m.props.FromUser(), m.props.SequenceNumber())
}

// MessagePropertiesDocument is the persisted and wire form of MessageProperties.
type MessagePropertiesDocument struct {
	RoomName    string      `json:"room_name"`
	ToUser      string      `json:"to_user"`
	FromUser    string      `json:"from_user"`
	MessageType MessageType `json:"mess_type"`
	SentTime    time.Time   `json:"sent_time"`
	RecTime     time.Time   `json:"rec_time"`
	SequenceNum int64       `json:"sequence_num"`
}

// MessageDocument is the persisted and wire form of ChatMessage.
type MessageDocument struct {
	ID      int64                     `json:"id,omitempty"`
	Message string                    `json:"message"`
	Props   MessagePropertiesDocument `json:"mess_props"`
}
