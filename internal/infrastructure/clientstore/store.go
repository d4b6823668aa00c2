package clientstore

import (
	"encoding/json"
	"log/slog"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

const (
	KeyQueue       = "plagiarismCheckQueue"
	KeyResult      = "plagiarism_results"
	KeyResultType  = "latest_result_type"
	KeyAPIURL      = "ngrok_api_url"
	KeyToken       = "token"
	KeyUser        = "user"
	KeyRole        = "role"
	KeyProgressLog = "plagiarismProgressMessages"

	cachePrefix = "cache:"
)

// Store is the single owner of persisted client state. Reads never fail:
// missing or malformed values come back empty. Writes are best-effort and
// only logged on failure.
type Store struct {
	kv     ports.KeyValueStore
	logger *slog.Logger
}

func New(kv ports.KeyValueStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

func (s *Store) GetQueue() []domain.QueueEntry {
	var entries []domain.QueueEntry
	if !s.readJSON(KeyQueue, &entries) {
		return []domain.QueueEntry{}
	}
	return dedupe(entries)
}

func (s *Store) SetQueue(entries []domain.QueueEntry) {
	s.writeJSON(KeyQueue, dedupe(entries))
}

// AddToQueue appends entries not already queued and returns the new queue.
func (s *Store) AddToQueue(entries ...domain.QueueEntry) []domain.QueueEntry {
	queue := append(s.GetQueue(), entries...)
	queue = dedupe(queue)
	s.writeJSON(KeyQueue, queue)
	return queue
}

func (s *Store) RemoveFromQueue(id string) []domain.QueueEntry {
	current := s.GetQueue()
	queue := make([]domain.QueueEntry, 0, len(current))
	for _, entry := range current {
		if entry.ID != id {
			queue = append(queue, entry)
		}
	}
	if len(queue) == 0 {
		s.ClearQueue()
		return queue
	}
	s.writeJSON(KeyQueue, queue)
	return queue
}

func (s *Store) ClearQueue() {
	s.delete(KeyQueue)
}

// SaveResult writes the result and then its scope tag. A crash between the
// two writes leaves the tag missing, which readers treat as "all".
func (s *Store) SaveResult(result domain.CheckResult, resultType domain.ResultType) {
	if resultType == "" {
		resultType = domain.ResultQueue
	}
	s.writeJSON(KeyResult, result)
	s.write(KeyResultType, string(resultType))
}

func (s *Store) GetResult() *domain.CheckResult {
	var result domain.CheckResult
	if !s.readJSON(KeyResult, &result) {
		return nil
	}
	return &result
}

func (s *Store) GetResultType() domain.ResultType {
	raw, ok := s.read(KeyResultType)
	if !ok {
		return domain.ResultAll
	}
	return domain.ParseResultType(raw)
}

func (s *Store) ClearResult() {
	s.delete(KeyResult)
	s.delete(KeyResultType)
}

func (s *Store) SaveProgressLog(events []domain.ProgressEvent) {
	if len(events) == 0 {
		s.delete(KeyProgressLog)
		return
	}
	s.writeJSON(KeyProgressLog, events)
}

func (s *Store) ProgressLog() []domain.ProgressEvent {
	var events []domain.ProgressEvent
	if !s.readJSON(KeyProgressLog, &events) {
		return nil
	}
	return events
}

// LastRunCompleted reports whether the persisted progress log ends with the
// completion marker.
func (s *Store) LastRunCompleted() bool {
	events := s.ProgressLog()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].IsTerminal() {
			return true
		}
	}
	return false
}

func (s *Store) Token() string {
	v, _ := s.read(KeyToken)
	return v
}

func (s *Store) SetToken(token string) {
	if token == "" {
		s.delete(KeyToken)
		return
	}
	s.write(KeyToken, token)
}

func (s *Store) User() *domain.User {
	var user domain.User
	if !s.readJSON(KeyUser, &user) {
		return nil
	}
	return &user
}

func (s *Store) SetUser(user domain.User) {
	s.writeJSON(KeyUser, user)
	if user.Role != "" {
		s.SetRole(user.Role)
	}
}

func (s *Store) Role() domain.Role {
	v, _ := s.read(KeyRole)
	return domain.Role(v)
}

func (s *Store) SetRole(role domain.Role) {
	if role == "" {
		s.delete(KeyRole)
		return
	}
	s.write(KeyRole, string(role))
}

func (s *Store) ClearAuth() {
	s.delete(KeyToken)
	s.delete(KeyUser)
	s.delete(KeyRole)
}

func (s *Store) CachedAPIURL() string {
	v, _ := s.read(KeyAPIURL)
	return v
}

func (s *Store) SetCachedAPIURL(url string) {
	s.write(KeyAPIURL, url)
}

// CachedResponse returns the last successful response body stored for operation.
func (s *Store) CachedResponse(operation string) ([]byte, bool) {
	v, ok := s.read(cachePrefix + operation)
	if !ok || v == "" {
		return nil, false
	}
	return []byte(v), true
}

func (s *Store) SaveCachedResponse(operation string, body []byte) {
	s.write(cachePrefix+operation, string(body))
}

func (s *Store) read(key string) (string, bool) {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("store_read_failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Store) readJSON(key string, out any) bool {
	raw, ok := s.read(key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("store_decode_failed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) write(key, value string) {
	if err := s.kv.Set(key, value); err != nil {
		s.logger.Error("store_write_failed", "key", key, "error", err)
	}
}

func (s *Store) writeJSON(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("store_encode_failed", "key", key, "error", err)
		return
	}
	s.write(key, string(raw))
}

func (s *Store) delete(key string) {
	if err := s.kv.Delete(key); err != nil {
		s.logger.Error("store_delete_failed", "key", key, "error", err)
	}
}

func dedupe(entries []domain.QueueEntry) []domain.QueueEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.QueueEntry, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.ID]; ok {
			continue
		}
		seen[entry.ID] = struct{}{}
		out = append(out, entry)
	}
	return out
}
