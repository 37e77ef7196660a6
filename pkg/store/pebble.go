package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"bazarchat/pkg/logger"
	"bazarchat/pkg/models"
	"bazarchat/pkg/utils"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string

	// seq reduces key collisions when multiple messages share the same
	// nanosecond timestamp.
	seq uint64

	// resolveMu serializes the find-or-create window of conversation
	// resolution within this process.
	resolveMu sync.Mutex
)

var (
	// ErrNotFound is returned when a conversation or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conversation for the same participant
	// pair was created concurrently. Callers recover by re-querying.
	ErrConflict = errors.New("conversation already exists for pair")
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// --- key layout -------------------------------------------------------
//
// chat:<chatID>:meta                      conversation metadata JSON
// chat:<chatID>:msg:<ts20>-<seq6>         message JSON, creation order
// latest:msg:<msgID>                      latest version of a message
// version:msg:<msgID>:<ts20>-<seq6>       appended message versions
// pair:<lowerID>:<higherID>               unordered pair -> chat id

// MsgKey builds the sortable message key for a chat.
func MsgKey(chatID string, ts int64, s uint64) (string, error) {
	if chatID == "" {
		return "", fmt.Errorf("empty chat id")
	}
	return fmt.Sprintf("chat:%s:msg:%020d-%06d", chatID, ts, s), nil
}

// VersionKey builds the version index key for a message id.
func VersionKey(msgID string, ts int64, s uint64) (string, error) {
	if msgID == "" {
		return "", fmt.Errorf("empty message id")
	}
	return fmt.Sprintf("version:msg:%s:%020d-%06d", msgID, ts, s), nil
}

func metaKey(chatID string) []byte {
	return []byte("chat:" + chatID + ":meta")
}

func pairKey(a, b string) []byte {
	lo, hi := models.CanonicalPair(a, b)
	return []byte("pair:" + lo + ":" + hi)
}

func latestKey(msgID string) []byte {
	return []byte("latest:msg:" + msgID)
}

// --- conversations ----------------------------------------------------

// SaveConversation stores conversation metadata under its reserved key.
func SaveConversation(c models.Conversation) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := db.Set(metaKey(c.ID), b, pebble.Sync); err != nil {
		logger.Error("save_conversation_failed", "chat", c.ID, "error", err)
		return err
	}
	return nil
}

// GetConversation returns the stored conversation for a given chat ID.
func GetConversation(chatID string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(metaKey(chatID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return c, ErrNotFound
		}
		return c, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid conversation metadata: %w", err)
	}
	return c, nil
}

// FindConversationByPair returns the conversation connecting the two
// users, in either argument order, or ErrNotFound.
func FindConversationByPair(userA, userB string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(pairKey(userA, userB))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return c, ErrNotFound
		}
		return c, err
	}
	chatID := string(v)
	closer.Close()
	return GetConversation(chatID)
}

// CreateConversation inserts a new conversation for the pair. It returns
// ErrConflict when a row for the same unordered pair already exists.
func CreateConversation(userA, userB, adID string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if userA == "" || userB == "" {
		return c, fmt.Errorf("both participants required")
	}
	if userA == userB {
		return c, fmt.Errorf("cannot open a conversation with yourself")
	}
	pk := pairKey(userA, userB)
	if _, closer, err := db.Get(pk); err == nil {
		closer.Close()
		return c, ErrConflict
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return c, err
	}
	lo, hi := models.CanonicalPair(userA, userB)
	now := time.Now().UTC().UnixNano()
	c = models.Conversation{
		ID:        utils.NewChatID(),
		UserA:     lo,
		UserB:     hi,
		AdID:      adID,
		CreatedTS: now,
		UpdatedTS: now,
	}
	if err := SaveConversation(c); err != nil {
		return models.Conversation{}, err
	}
	if err := db.Set(pk, []byte(c.ID), pebble.Sync); err != nil {
		logger.Error("save_pair_index_failed", "chat", c.ID, "error", err)
		return models.Conversation{}, err
	}
	conversationsCreated.Inc()
	logger.Info("conversation_created", "chat", c.ID, "user_a", lo, "user_b", hi)
	return c, nil
}

// ResolveConversation finds the single conversation connecting the two
// users, creating it lazily when absent. A create that loses the race to
// a concurrent insert recovers by re-querying the winner's row.
func ResolveConversation(userA, userB, adID string) (models.Conversation, bool, error) {
	if c, err := FindConversationByPair(userA, userB); err == nil {
		return c, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return models.Conversation{}, false, err
	}
	resolveMu.Lock()
	defer resolveMu.Unlock()
	c, err := CreateConversation(userA, userB, adID)
	if errors.Is(err, ErrConflict) {
		// lost the race; the other actor's row is the canonical one
		c, err = FindConversationByPair(userA, userB)
		return c, false, err
	}
	if err != nil {
		return models.Conversation{}, false, err
	}
	return c, true, nil
}

// ListConversations returns all conversations the user participates in,
// most recent activity first. An empty userID returns every
// conversation (used by the inspect tool).
func ListConversations(userID string) ([]models.Conversation, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("chat:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			logger.Warn("skip_invalid_conversation", "key", string(iter.Key()), "error", err)
			continue
		}
		if userID == "" || c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedTS > out[j].UpdatedTS })
	return out, nil
}

// TouchConversation bumps the updated timestamp of a conversation.
func TouchConversation(chatID string, ts int64) error {
	c, err := GetConversation(chatID)
	if err != nil {
		return err
	}
	if ts > c.UpdatedTS {
		c.UpdatedTS = ts
		return SaveConversation(c)
	}
	return nil
}

// --- messages ---------------------------------------------------------

// SaveMessage appends a message to its conversation, indexes the latest
// version by message ID and bumps the conversation's updated timestamp.
func SaveMessage(msg models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("message has no chat id")
	}
	if msg.TS == 0 {
		msg.TS = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key, err := MsgKey(msg.ChatID, msg.TS, s)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	wb := new(pebble.Batch)
	_ = wb.Set([]byte(key), data, pebble.NoSync)
	_ = wb.Set(latestKey(msg.ID), data, pebble.NoSync)
	if vk, verr := VersionKey(msg.ID, msg.TS, s); verr == nil {
		_ = wb.Set([]byte(vk), data, pebble.NoSync)
	}
	if err := ApplyBatch(wb, true); err != nil {
		logger.Error("save_message_failed", "chat", msg.ChatID, "key", key, "error", err)
		return err
	}
	messagesSaved.Inc()
	RecordWrite(int(wb.Count()))
	if err := TouchConversation(msg.ChatID, msg.TS); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Warn("touch_conversation_failed", "chat", msg.ChatID, "error", err)
	}
	logger.Debug("message_saved", "chat", msg.ChatID, "msg_id", msg.ID)
	return nil
}

// ListMessages returns all messages for a chat in creation order
// (oldest first). An optional limit keeps only the newest N.
func ListMessages(chatID string, limit ...int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("chat:" + chatID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("skip_invalid_message", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if len(limit) > 0 && limit[0] > 0 && limit[0] < len(out) {
		out = out[len(out)-limit[0]:]
	}
	return out, nil
}

// GetLatestMessage returns the latest version for a message ID.
func GetLatestMessage(msgID string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(latestKey(msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid stored message: %w", err)
	}
	return m, nil
}

// ListMessageVersions returns all stored versions for a message ID in
// chronological order.
func ListMessageVersions(msgID string) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("version:msg:" + msgID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// MarkRead flips the read flag on every unread message in the chat that
// was not sent by reader. The flag only ever transitions false->true.
// It returns the flipped messages so callers can fan out the updates.
func MarkRead(chatID, reader string) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("chat:" + chatID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var flipped []models.Message
	wb := new(pebble.Batch)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.IsRead || m.Sender == reader {
			continue
		}
		m.IsRead = true
		data, merr := json.Marshal(m)
		if merr != nil {
			continue
		}
		k := append([]byte(nil), iter.Key()...)
		_ = wb.Set(k, data, pebble.NoSync)
		_ = wb.Set(latestKey(m.ID), data, pebble.NoSync)
		s := atomic.AddUint64(&seq, 1)
		if vk, verr := VersionKey(m.ID, time.Now().UTC().UnixNano(), s); verr == nil {
			_ = wb.Set([]byte(vk), data, pebble.NoSync)
		}
		flipped = append(flipped, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if len(flipped) == 0 {
		return nil, nil
	}
	if err := ApplyBatch(wb, true); err != nil {
		logger.Error("mark_read_failed", "chat", chatID, "error", err)
		return nil, err
	}
	readMarks.Add(float64(len(flipped)))
	RecordWrite(int(wb.Count()))
	logger.Debug("messages_marked_read", "chat", chatID, "reader", reader, "count", len(flipped))
	return flipped, nil
}

// ApplyBatch hands a prepared write batch to the underlying DB.
func ApplyBatch(wb *pebble.Batch, sync bool) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	return db.Apply(wb, opt)
}

// RecordWrite accounts applied entries for metrics.
func RecordWrite(n int) {
	if n > 0 {
		batchWrites.Add(float64(n))
	}
}

// staleConversations returns the ids of conversations whose last
// activity predates cutoff.
func staleConversations(cutoff int64) (map[string]bool, error) {
	prefix := []byte("chat:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	stale := map[string]bool{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			continue
		}
		if c.UpdatedTS < cutoff {
			stale[c.ID] = true
		}
	}
	return stale, iter.Error()
}

// PurgeMessagesBefore deletes message rows older than cutoff (ns), but
// only in conversations with no activity since the cutoff: a chat whose
// UpdatedTS is at or past the cutoff keeps its full history. Deletes
// run in batches of batchSize with an optional sleep between batches.
// Latest/version indexes of purged messages are removed too. Returns
// the number of deleted message rows.
func PurgeMessagesBefore(cutoff int64, batchSize int, sleep time.Duration, dryRun bool) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	prefix := []byte("chat:")
	stale, err := staleConversations(cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	deleted := 0
	wb := new(pebble.Batch)
	pending := 0
	flush := func() error {
		if pending == 0 || dryRun {
			wb.Reset()
			pending = 0
			return nil
		}
		if err := ApplyBatch(wb, true); err != nil {
			return err
		}
		wb = new(pebble.Batch)
		pending = 0
		if sleep > 0 {
			time.Sleep(sleep)
		}
		return nil
	}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.Contains(iter.Key(), []byte(":msg:")) {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if !stale[m.ChatID] || m.TS >= cutoff {
			continue
		}
		k := append([]byte(nil), iter.Key()...)
		_ = wb.Delete(k, pebble.NoSync)
		_ = wb.Delete(latestKey(m.ID), pebble.NoSync)
		vlo := []byte("version:msg:" + m.ID + ":")
		vhi := []byte("version:msg:" + m.ID + ";")
		_ = wb.DeleteRange(vlo, vhi, pebble.NoSync)
		deleted++
		pending++
		if pending >= batchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Error(); err != nil {
		return deleted, err
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	if deleted > 0 {
		logger.Info("retention_purged_messages", "count", deleted, "dry_run", dryRun)
	}
	return deleted, nil
}
