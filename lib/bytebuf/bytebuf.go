// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

// Package bytebuf provides a growable byte accumulator with an internal
// read cursor. It is the storage primitive underneath the buffered
// stream layer: inbound bytes are appended at the tail, consumed from
// the front through the cursor, and periodically discarded so a
// long-lived stream does not retain every byte it has ever seen.
//
// A Buffer knows nothing about I/O and never fails: every count passed
// to [Buffer.Read] or [Buffer.Consume] is clamped to the legal range.
// Callers treat it as an infallible accumulator and keep error handling
// in the stream layer above.
package bytebuf

// Buffer is a mutable byte sequence with a read cursor. The cursor
// tracks how many bytes have been consumed from the front by Read
// calls; Consume discards that already-read prefix to bound memory.
//
// A Buffer is not safe for concurrent use. The zero value is an empty
// buffer ready for use.
type Buffer struct {
	content []byte
	// position counts bytes already handed out by Read. It never
	// exceeds len(content) on the read path, but Consume can leave it
	// anywhere in [0, len(content)] — see Consume.
	position int
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// NewFrom returns a buffer initialized with a copy of content and the
// cursor at the front.
func NewFrom(content []byte) *Buffer {
	buffer := &Buffer{}
	buffer.Append(content)
	return buffer
}

// Length returns the total byte count held, including bytes already
// read past by the cursor but not yet discarded.
func (buffer *Buffer) Length() int {
	return len(buffer.content)
}

// Available returns the number of unread bytes remaining after the
// cursor.
func (buffer *Buffer) Available() int {
	return len(buffer.content) - buffer.position
}

// IsEmpty reports whether the buffer holds no bytes at all.
func (buffer *Buffer) IsEmpty() bool {
	return len(buffer.content) == 0
}

// AtEnd reports whether the cursor has reached the end of the content.
func (buffer *Buffer) AtEnd() bool {
	return buffer.position >= len(buffer.content)
}

// Reset moves the cursor back to the front without discarding any
// content. A caller that read speculatively (say, to parse a frame
// that turned out to be incomplete) calls Reset to make the same bytes
// readable again.
func (buffer *Buffer) Reset() {
	buffer.position = 0
}

// Clear discards all content and moves the cursor to the front.
func (buffer *Buffer) Clear() {
	buffer.content = buffer.content[:0]
	buffer.position = 0
}

// Append adds data at the tail. The cursor does not move. Returns the
// buffer for chaining.
func (buffer *Buffer) Append(data []byte) *Buffer {
	buffer.content = append(buffer.content, data...)
	return buffer
}

// Write appends each chunk at the tail verbatim. Chunks are raw bytes;
// no text-encoding semantics apply. The cursor does not move. Returns
// the buffer for chaining.
func (buffer *Buffer) Write(chunks ...[]byte) *Buffer {
	for _, chunk := range chunks {
		buffer.content = append(buffer.content, chunk...)
	}
	return buffer
}

// Read returns up to count bytes starting at the cursor and advances
// the cursor by the number of bytes actually returned. A count larger
// than Available is clamped; a count of zero or less returns nothing.
// Read never removes bytes from the buffer — only Consume does.
//
// The returned slice is a copy and stays valid across later Append,
// Consume, and Clear calls.
func (buffer *Buffer) Read(count int) []byte {
	if count < 0 {
		count = 0
	}
	if remaining := buffer.Available(); count > remaining {
		count = remaining
	}
	data := make([]byte, count)
	copy(data, buffer.content[buffer.position:buffer.position+count])
	buffer.position += count
	return data
}

// ReadAll returns every unread byte after the cursor and advances the
// cursor to the end.
func (buffer *Buffer) ReadAll() []byte {
	return buffer.Read(buffer.Available())
}

// Consume discards the first count bytes of content. It exists purely
// to bound memory: Read leaves bytes in place so they can be re-read
// after Reset, and Consume is the only operation that permanently
// drops them.
//
//   - count >= Length: the buffer is cleared (content empty, cursor 0).
//   - 0 < count < Length: content loses its first count bytes and the
//     cursor becomes position - count, floored at zero. The floor is
//     load-bearing: discarding more bytes than have been read leaves
//     the cursor at zero rather than going negative, even though the
//     bytes at the front of the remaining content were never read.
//   - count <= 0: no-op.
//
// Returns the buffer for chaining.
func (buffer *Buffer) Consume(count int) *Buffer {
	switch {
	case count >= len(buffer.content):
		buffer.Clear()
	case count > 0:
		// Copy the tail down in place so the discarded prefix is
		// actually released for reuse rather than pinned by the
		// backing array.
		kept := copy(buffer.content, buffer.content[count:])
		buffer.content = buffer.content[:kept]
		buffer.position -= count
		if buffer.position < 0 {
			buffer.position = 0
		}
	}
	return buffer
}

// ConsumePosition discards everything the cursor has already read
// past, leaving only unread bytes with the cursor at the front. This
// is the default discard the stream layer applies before each network
// read.
func (buffer *Buffer) ConsumePosition() *Buffer {
	return buffer.Consume(buffer.position)
}

// Snapshot returns a copy of the entire content, including bytes
// behind the cursor. Mutating the returned slice does not affect the
// buffer.
func (buffer *Buffer) Snapshot() []byte {
	data := make([]byte, len(buffer.content))
	copy(data, buffer.content)
	return data
}
