package view

import (
	"strings"
	"testing"
	"time"
)

func TestFeedMarksDirty(t *testing.T) {
	v := New(5, 20)
	v.Feed([]byte("hello"))
	select {
	case <-v.Dirty():
	case <-time.After(time.Second):
		t.Fatal("no dirty tick after Feed")
	}
}

func TestDirtyCoalesces(t *testing.T) {
	v := New(5, 20)
	for i := 0; i < 10; i++ {
		v.Feed([]byte("x"))
	}
	<-v.Dirty()
	select {
	case <-v.Dirty():
		t.Error("second dirty tick pending; bursts should coalesce to one")
	default:
	}
}

func TestFeedEmptyIsQuiet(t *testing.T) {
	v := New(5, 20)
	v.Feed(nil)
	select {
	case <-v.Dirty():
		t.Error("dirty tick for an empty chunk")
	default:
	}
}

func TestRenderFrame(t *testing.T) {
	v := New(5, 20)
	v.Feed([]byte("hello"))

	var b strings.Builder
	if err := v.Render(&b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	frame := b.String()
	if !strings.HasPrefix(frame, "\x1b[H\x1b[2J") {
		t.Error("frame does not start with home+clear")
	}
	if !strings.Contains(frame, "hello") {
		t.Errorf("frame missing fed text: %q", frame)
	}
	if !strings.HasSuffix(frame, "\x1b[?25h") {
		t.Error("frame does not restore cursor visibility")
	}
}

func TestRenderPropagatesHiddenCursor(t *testing.T) {
	v := New(5, 20)
	v.Feed([]byte("\x1b[?25l"))

	var b strings.Builder
	if err := v.Render(&b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasSuffix(b.String(), "\x1b[?25l") {
		t.Error("hidden cursor in the stream not propagated to the frame")
	}
}

func TestResetClearsContent(t *testing.T) {
	v := New(5, 20)
	v.Feed([]byte("old content"))
	<-v.Dirty()
	v.Reset()

	select {
	case <-v.Dirty():
	case <-time.After(time.Second):
		t.Fatal("Reset did not mark the viewer dirty")
	}

	var b strings.Builder
	if err := v.Render(&b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(b.String(), "old content") {
		t.Error("content survived Reset")
	}
}
