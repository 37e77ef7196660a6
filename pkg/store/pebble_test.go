package store

import (
	"path/filepath"
	"testing"
	"time"

	"bazarchat/pkg/models"
	"bazarchat/pkg/utils"
)

func openTestDB(t *testing.T) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	if err := Open(dir); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestResolveConversationIdempotent(t *testing.T) {
	openTestDB(t)

	c1, created, err := ResolveConversation("bob", "alice", "ad-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created {
		t.Fatalf("expected first resolve to create")
	}
	if c1.UserA != "alice" || c1.UserB != "bob" {
		t.Fatalf("expected canonical pair ordering, got %s/%s", c1.UserA, c1.UserB)
	}

	// same pair in the opposite order resolves to the same chat
	c2, created, err := ResolveConversation("alice", "bob", "")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if created {
		t.Fatalf("second resolve must not create")
	}
	if c2.ID != c1.ID {
		t.Fatalf("expected same chat id, got %s and %s", c1.ID, c2.ID)
	}
}

func TestCreateConversationConflict(t *testing.T) {
	openTestDB(t)

	if _, err := CreateConversation("u1", "u2", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateConversation("u2", "u1", ""); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateConversationSelfRejected(t *testing.T) {
	openTestDB(t)
	if _, err := CreateConversation("u1", "u1", ""); err == nil {
		t.Fatalf("expected error for self conversation")
	}
}

func TestSaveAndListMessagesOrder(t *testing.T) {
	openTestDB(t)

	c, err := CreateConversation("a", "b", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	base := time.Now().UTC().UnixNano()
	for i := 0; i < 5; i++ {
		m := models.Message{
			ID:      utils.NewMessageID(),
			ChatID:  c.ID,
			Sender:  "a",
			Content: models.TextContent("hello"),
			TS:      base + int64(i),
		}
		if err := SaveMessage(m); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	msgs, err := ListMessages(c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].TS < msgs[i-1].TS {
			t.Fatalf("messages out of order at %d", i)
		}
	}

	limited, err := ListMessages(c.ID, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || limited[1].TS != msgs[4].TS {
		t.Fatalf("limit should keep the newest messages")
	}
}

func TestMarkReadFlipsOnlyCounterpartMessages(t *testing.T) {
	openTestDB(t)

	c, err := CreateConversation("a", "b", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, sender := range []string{"a", "b", "b"} {
		m := models.Message{
			ID:      utils.NewMessageID(),
			ChatID:  c.ID,
			Sender:  sender,
			Content: models.TextContent("hi"),
			TS:      time.Now().UTC().UnixNano(),
		}
		if err := SaveMessage(m); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	flipped, err := MarkRead(c.ID, "a")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(flipped) != 2 {
		t.Fatalf("expected 2 flipped messages, got %d", len(flipped))
	}

	msgs, _ := ListMessages(c.ID)
	for _, m := range msgs {
		if m.Sender == "b" && !m.IsRead {
			t.Fatalf("counterpart message not marked read")
		}
		if m.Sender == "a" && m.IsRead {
			t.Fatalf("own message must not be marked read")
		}
	}

	// second pass is a no-op: the flag only transitions false->true once
	again, err := MarkRead(c.ID, "a")
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no flips on second pass, got %d", len(again))
	}
}

func TestGetLatestMessageTracksReadFlag(t *testing.T) {
	openTestDB(t)

	c, _ := CreateConversation("a", "b", "")
	m := models.Message{
		ID:      utils.NewMessageID(),
		ChatID:  c.ID,
		Sender:  "b",
		Content: models.TextContent("ping"),
		TS:      time.Now().UTC().UnixNano(),
	}
	if err := SaveMessage(m); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := MarkRead(c.ID, "a"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	latest, err := GetLatestMessage(m.ID)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if !latest.IsRead {
		t.Fatalf("latest version should carry the read flag")
	}
	versions, err := ListMessageVersions(m.ID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) < 2 {
		t.Fatalf("expected at least 2 versions, got %d", len(versions))
	}
}

func TestListConversationsSortedByActivity(t *testing.T) {
	openTestDB(t)

	c1, _ := CreateConversation("me", "x", "")
	c2, _ := CreateConversation("me", "y", "")

	// activity on c1 after c2 was created
	m := models.Message{
		ID:      utils.NewMessageID(),
		ChatID:  c1.ID,
		Sender:  "x",
		Content: models.TextContent("bump"),
		TS:      time.Now().UTC().UnixNano() + int64(time.Second),
	}
	if err := SaveMessage(m); err != nil {
		t.Fatalf("save: %v", err)
	}

	chats, err := ListConversations("me")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].ID != c1.ID {
		t.Fatalf("expected most recently active chat first")
	}
	if chats[1].ID != c2.ID {
		t.Fatalf("expected older chat second")
	}

	other, err := ListConversations("stranger")
	if err != nil {
		t.Fatalf("list stranger: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("stranger should see no chats")
	}
}

func TestPurgeMessagesBefore(t *testing.T) {
	openTestDB(t)

	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()
	fresh := time.Now().UTC().UnixNano()
	cutoff := time.Now().UTC().Add(-24 * time.Hour).UnixNano()

	seed := func(chatID string, ts ...int64) {
		t.Helper()
		for _, v := range ts {
			m := models.Message{
				ID:      utils.NewMessageID(),
				ChatID:  chatID,
				Sender:  "a",
				Content: models.TextContent("x"),
				TS:      v,
			}
			if err := SaveMessage(m); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
	}

	// abandoned chat: only old messages, no activity since the cutoff
	stale, _ := CreateConversation("a", "b", "")
	seed(stale.ID, old, old+1)
	stale.UpdatedTS = old + 1
	if err := SaveConversation(stale); err != nil {
		t.Fatalf("backdate conversation: %v", err)
	}

	// active chat: an old head plus recent traffic
	active, _ := CreateConversation("a", "c", "")
	seed(active.ID, old, fresh)

	// dry run counts without deleting
	n, err := PurgeMessagesBefore(cutoff, 10, 0, true)
	if err != nil {
		t.Fatalf("purge dry: %v", err)
	}
	if n != 2 {
		t.Fatalf("dry run should count 2, got %d", n)
	}
	if msgs, _ := ListMessages(stale.ID); len(msgs) != 2 {
		t.Fatalf("dry run must not delete")
	}

	n, err = PurgeMessagesBefore(cutoff, 10, 0, false)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	if msgs, _ := ListMessages(stale.ID); len(msgs) != 0 {
		t.Fatalf("abandoned chat should be emptied, %d rows left", len(msgs))
	}

	// a chat with recent activity keeps its full history, old head included
	msgs, _ := ListMessages(active.ID)
	if len(msgs) != 2 {
		t.Fatalf("active chat must keep its history, got %d rows", len(msgs))
	}
}
