package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Volcengine openspeech binary framing: a 4 byte header, optional sequence
// and event fields, then a big-endian payload size and the payload.

const protocolVersion = 0b0001

// MessageType 消息类型
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// MessageFlags 消息标志位
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
	WithEvent              MessageFlags = 0b0100
)

// EventType 服务端事件
type EventType int32

const (
	EventStartConnection    EventType = 1
	EventFinishConnection   EventType = 2
	EventConnectionStarted  EventType = 50
	EventConnectionFailed   EventType = 51
	EventConnectionFinished EventType = 52
	EventSessionStarted     EventType = 150
	EventSessionFinished    EventType = 152
	EventSessionFailed      EventType = 153
)

// Serialization 序列化方式
type Serialization uint8

const (
	NoSerialization   Serialization = 0b0000
	JSONSerialization Serialization = 0b0001
)

// Compression 压缩方式
type Compression uint8

const (
	NoCompression   Compression = 0b0000
	GzipCompression Compression = 0b0001
)

// Header 4 字节消息头
type Header struct {
	MessageType   MessageType
	Flags         MessageFlags
	Serialization Serialization
	Compression   Compression
	Size          uint8 // 以 4 字节为单位
}

// Frame 一条完整的二进制消息
type Frame struct {
	Header    Header
	Sequence  int32
	Event     EventType
	SessionID string
	ConnectID string
	ErrorCode uint32
	Payload   []byte
}

// NewRequestFrame builds a JSON full client request.
func NewRequestFrame(payload []byte, compression Compression) (*Frame, error) {
	data, err := compress(payload, compression)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Header: Header{
			MessageType:   FullClientRequest,
			Flags:         NoSequenceNumber,
			Serialization: JSONSerialization,
			Compression:   compression,
			Size:          1,
		},
		Payload: data,
	}, nil
}

// IsLast reports whether the frame closes the audio stream.
func (f *Frame) IsLast() bool {
	switch f.Header.Flags & 0b0011 {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	}
	return f.Header.Flags&WithEvent == WithEvent && f.Event == EventSessionFinished
}

// Body returns the decompressed payload.
func (f *Frame) Body() ([]byte, error) {
	return decompress(f.Payload, f.Header.Compression)
}

// Encode serialises the frame.
func (f *Frame) Encode() []byte {
	size := f.Header.Size
	if size == 0 {
		size = 1
	}

	buf := make([]byte, 0, 16+len(f.Payload))
	buf = append(buf,
		protocolVersion<<4|size,
		uint8(f.Header.MessageType)<<4|uint8(f.Header.Flags),
		uint8(f.Header.Serialization)<<4|uint8(f.Header.Compression),
		0,
	)
	// 扩展头部填充
	for i := 1; i < int(size); i++ {
		buf = append(buf, 0, 0, 0, 0)
	}

	if hasSequence(f.Header.Flags) {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.Sequence))
	}

	if f.Header.Flags&WithEvent == WithEvent {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.Event))
		if !eventSkipsSessionID(f.Event) {
			buf = appendString(buf, f.SessionID)
		}
		if eventHasConnectID(f.Event) {
			buf = appendString(buf, f.ConnectID)
		}
	}

	if f.Header.MessageType == ErrorMessage {
		buf = binary.BigEndian.AppendUint32(buf, f.ErrorCode)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.Payload)))
	return append(buf, f.Payload...)
}

// DecodeFrame parses one binary message.
func DecodeFrame(data []byte) (*Frame, error) {
	r := bytes.NewReader(data)

	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version := head[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := &Frame{Header: Header{
		Size:          head[0] & 0x0F,
		MessageType:   MessageType(head[1] >> 4),
		Flags:         MessageFlags(head[1] & 0x0F),
		Serialization: Serialization(head[2] >> 4),
		Compression:   Compression(head[2] & 0x0F),
	}}

	if extra := int(f.Header.Size)*4 - 4; extra > 0 {
		if _, err := r.Seek(int64(extra), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("failed to skip extended header: %w", err)
		}
	}

	if hasSequence(f.Header.Flags) {
		if err := binary.Read(r, binary.BigEndian, &f.Sequence); err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
	}

	if f.Header.Flags&WithEvent == WithEvent {
		if err := binary.Read(r, binary.BigEndian, &f.Event); err != nil {
			return nil, fmt.Errorf("failed to read event type: %w", err)
		}
		var err error
		if !eventSkipsSessionID(f.Event) {
			if f.SessionID, err = readString(r); err != nil {
				return nil, fmt.Errorf("failed to read session id: %w", err)
			}
		}
		if eventHasConnectID(f.Event) {
			if f.ConnectID, err = readString(r); err != nil {
				return nil, fmt.Errorf("failed to read connect id: %w", err)
			}
		}
	}

	if f.Header.MessageType == ErrorMessage {
		if err := binary.Read(r, binary.BigEndian, &f.ErrorCode); err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
	}

	payload, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	f.Payload = payload
	return f, nil
}

func hasSequence(flags MessageFlags) bool {
	switch flags & 0b0011 {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		return true
	}
	return false
}

func eventSkipsSessionID(event EventType) bool {
	switch event {
	case EventStartConnection, EventFinishConnection,
		EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	}
	return false
}

func eventHasConnectID(event EventType) bool {
	switch event {
	case EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	}
	return false
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readString(r io.Reader) (string, error) {
	data, err := readBytes(r)
	return string(data), err
}

func readBytes(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("expected %d bytes: %w", size, err)
	}
	return data, nil
}

func compress(data []byte, method Compression) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, fmt.Errorf("gzip write failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip close failed: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}

func decompress(data []byte, method Compression) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}
