// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package bytebuf

import (
	"bytes"
	"testing"
)

func TestBufferZeroValue(t *testing.T) {
	t.Parallel()
	var buffer Buffer

	if !buffer.IsEmpty() {
		t.Error("zero-value buffer should be empty")
	}
	if !buffer.AtEnd() {
		t.Error("zero-value buffer should be at end")
	}
	if buffer.Length() != 0 || buffer.Available() != 0 {
		t.Errorf("Length/Available: got %d/%d, want 0/0", buffer.Length(), buffer.Available())
	}
}

func TestBufferAppendDoesNotMoveCursor(t *testing.T) {
	t.Parallel()
	buffer := New()

	buffer.Append([]byte("hello"))
	if buffer.Length() != 5 || buffer.Available() != 5 {
		t.Errorf("after append: Length/Available got %d/%d, want 5/5", buffer.Length(), buffer.Available())
	}

	// Read two bytes, then append more: the cursor must stay put.
	buffer.Read(2)
	buffer.Append([]byte(" world"))
	if buffer.Available() != 9 {
		t.Errorf("Available after read+append: got %d, want 9", buffer.Available())
	}
	if got := buffer.ReadAll(); !bytes.Equal(got, []byte("llo world")) {
		t.Errorf("ReadAll: got %q, want %q", got, "llo world")
	}
}

func TestBufferWriteMultipleChunks(t *testing.T) {
	t.Parallel()
	buffer := New()

	buffer.Write([]byte("ab"), []byte("cd"), nil, []byte("ef"))
	if got := buffer.ReadAll(); !bytes.Equal(got, []byte("abcdef")) {
		t.Errorf("ReadAll: got %q, want %q", got, "abcdef")
	}
}

func TestBufferReadClampsToAvailable(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))
	buffer.Read(2) // cursor at 2

	if available := buffer.Available(); available != 4 {
		t.Fatalf("Available: got %d, want 4", available)
	}
	got := buffer.Read(3)
	if !bytes.Equal(got, []byte("cde")) {
		t.Errorf("Read(3): got %q, want %q", got, "cde")
	}

	// Ask for more than remains: clamp, never over-read.
	got = buffer.Read(100)
	if !bytes.Equal(got, []byte("f")) {
		t.Errorf("Read(100): got %q, want %q", got, "f")
	}
	if !buffer.AtEnd() {
		t.Error("buffer should be at end after draining")
	}

	// Fully drained: further reads return empty, not nil-panic.
	if got := buffer.Read(1); len(got) != 0 {
		t.Errorf("Read past end: got %q, want empty", got)
	}
}

func TestBufferReadNegativeCount(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abc"))

	if got := buffer.Read(-1); len(got) != 0 {
		t.Errorf("Read(-1): got %q, want empty", got)
	}
	if buffer.Available() != 3 {
		t.Errorf("Available after Read(-1): got %d, want 3", buffer.Available())
	}
}

func TestBufferReadReturnsCopy(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))

	got := buffer.Read(3)
	buffer.Consume(6) // rewrites the backing array
	buffer.Append([]byte("XYZXYZ"))
	if !bytes.Equal(got, []byte("abc")) {
		t.Errorf("earlier Read result mutated: got %q, want %q", got, "abc")
	}
}

func TestBufferResetRewindsWithoutDiscard(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))

	first := buffer.ReadAll()
	buffer.Reset()
	second := buffer.ReadAll()
	if !bytes.Equal(first, second) {
		t.Errorf("re-read after Reset: got %q, want %q", second, first)
	}
}

func TestBufferClear(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))
	buffer.Read(3)

	buffer.Clear()
	if !buffer.IsEmpty() || buffer.Available() != 0 {
		t.Error("Clear should empty the buffer and rewind the cursor")
	}
}

func TestBufferConsumeAll(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))
	buffer.Read(4)

	// Consuming the whole content (or more) is equivalent to Clear.
	buffer.Consume(10)
	if buffer.Length() != 0 {
		t.Errorf("Length after Consume(10): got %d, want 0", buffer.Length())
	}
	if got := buffer.ReadAll(); len(got) != 0 {
		t.Errorf("ReadAll after full consume: got %q, want empty", got)
	}
}

func TestBufferConsumePartial(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))
	buffer.Read(5) // cursor at 5

	buffer.Consume(4)
	if got := buffer.Snapshot(); !bytes.Equal(got, []byte("ef")) {
		t.Errorf("content after Consume(4): got %q, want %q", got, "ef")
	}
	// Cursor moved from 5 to 1: one unread byte remains.
	if buffer.Available() != 1 {
		t.Errorf("Available after Consume(4): got %d, want 1", buffer.Available())
	}
	if got := buffer.ReadAll(); !bytes.Equal(got, []byte("f")) {
		t.Errorf("ReadAll after Consume(4): got %q, want %q", got, "f")
	}
}

// TestBufferConsumeBeyondCursor pins the cursor floor: discarding more
// bytes than have been read leaves the cursor at zero, making the
// never-read bytes at the front of the remaining content readable.
// This exact behavior is relied on and must not be "fixed" to track
// unread bytes differently.
func TestBufferConsumeBeyondCursor(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))
	buffer.Read(1) // cursor at 1

	buffer.Consume(3)
	if got := buffer.Snapshot(); !bytes.Equal(got, []byte("def")) {
		t.Errorf("content after Consume(3): got %q, want %q", got, "def")
	}
	// position - count would be -2; it floors at 0, so all three
	// remaining bytes read back even though "bc" was skipped unread.
	if got := buffer.ReadAll(); !bytes.Equal(got, []byte("def")) {
		t.Errorf("ReadAll after over-consume: got %q, want %q", got, "def")
	}
}

func TestBufferConsumeZeroOrNegative(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))
	buffer.Read(2)

	buffer.Consume(0).Consume(-5)
	if got := buffer.Snapshot(); !bytes.Equal(got, []byte("abcdef")) {
		t.Errorf("content after no-op consumes: got %q, want %q", got, "abcdef")
	}
	if buffer.Available() != 4 {
		t.Errorf("Available after no-op consumes: got %d, want 4", buffer.Available())
	}
}

func TestBufferConsumePosition(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abcdef"))
	buffer.Read(4)

	buffer.ConsumePosition()
	if got := buffer.Snapshot(); !bytes.Equal(got, []byte("ef")) {
		t.Errorf("content after ConsumePosition: got %q, want %q", got, "ef")
	}
	if buffer.Available() != 2 {
		t.Errorf("Available after ConsumePosition: got %d, want 2", buffer.Available())
	}
}

func TestBufferSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	buffer := NewFrom([]byte("abc"))

	snapshot := buffer.Snapshot()
	snapshot[0] = 'X'
	if got := buffer.ReadAll(); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("buffer mutated through snapshot: got %q, want %q", got, "abc")
	}
}
