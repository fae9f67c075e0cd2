package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestSessions_CreatedOnFirstUse(t *testing.T) {
	s := NewSessions(20)
	a := s.Get("chat:1")
	if a != s.Get("chat:1") {
		t.Error("Get should return the same session for the same key")
	}
	if a == s.Get("chat:2") {
		t.Error("different keys must not share a session")
	}
}

func TestSession_TrimKeepsMostRecent(t *testing.T) {
	s := NewSessions(4)
	sess := s.Get("k")
	for i := 0; i < 7; i++ {
		sess.Append("user", fmt.Sprintf("m%d", i))
	}

	msgs := sess.Messages()
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	if msgs[0].Content != "m3" || msgs[3].Content != "m6" {
		t.Errorf("messages = %+v, want m3..m6", msgs)
	}
}

func TestSession_MessagesIsCopy(t *testing.T) {
	sess := NewSessions(10).Get("k")
	sess.Append("user", "original")
	msgs := sess.Messages()
	msgs[0].Content = "mutated"
	if sess.Messages()[0].Content != "original" {
		t.Error("Messages should return a copy")
	}
}

func TestSessions_Clear(t *testing.T) {
	s := NewSessions(10)
	old := s.Get("k")
	old.Append("user", "hello")

	s.Clear("k")

	fresh := s.Get("k")
	if fresh == old || fresh.Len() != 0 {
		t.Error("Clear should tear the session down so the next Get starts empty")
	}
	if got := s.Stats()["sessions"]; got != 1 {
		t.Errorf("Stats sessions = %v, want 1", got)
	}
}

func TestSessions_ConcurrentChatsIsolated(t *testing.T) {
	s := NewSessions(1000)
	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			key := fmt.Sprintf("chat:%d", c)
			for i := 0; i < 50; i++ {
				sess := s.Get(key)
				sess.Lock()
				sess.Append("user", key)
				sess.Append("assistant", key)
				sess.Unlock()
			}
		}(c)
	}
	wg.Wait()

	for c := 0; c < 8; c++ {
		key := fmt.Sprintf("chat:%d", c)
		msgs := s.Get(key).Messages()
		if len(msgs) != 100 {
			t.Fatalf("%s has %d messages, want 100", key, len(msgs))
		}
		for i, m := range msgs {
			if m.Content != key {
				t.Fatalf("%s entry %d leaked from %s", key, i, m.Content)
			}
			want := "user"
			if i%2 == 1 {
				want = "assistant"
			}
			if m.Role != want {
				t.Fatalf("%s entry %d role %s, want %s", key, i, m.Role, want)
			}
		}
	}
}
