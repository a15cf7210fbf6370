package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrIgnored marks a player message that is not a progress report.
var ErrIgnored = errors.New("not a progress message")

const keyPrefix = "watch_progress_"

// Key is the storage key for a media id.
func Key(mediaID string) string { return keyPrefix + mediaID }

// Record is the decoded position of one title.
type Record struct {
	MediaID          string  `json:"id"`
	TimestampSeconds float64 `json:"timestamp"`
}

type Store struct {
	kv  KV
	log *zap.Logger
}

func NewStore(kv KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log}
}

// Save overwrites the position for mediaID. Failures are logged, never
// returned.
func (s *Store) Save(ctx context.Context, mediaID string, seconds float64) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" || seconds < 0 {
		s.log.Debug("progress save skipped", zap.String("media_id", mediaID), zap.Float64("seconds", seconds))
		return
	}
	b, err := json.Marshal(Record{MediaID: mediaID, TimestampSeconds: seconds})
	if err != nil {
		s.log.Warn("progress encode failed", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, Key(mediaID), b); err != nil {
		s.log.Warn("progress save failed", zap.String("media_id", mediaID), zap.Error(err))
	}
}

// Load returns the saved position. Missing, unreadable or malformed
// records all report false.
func (s *Store) Load(ctx context.Context, mediaID string) (float64, bool) {
	raw, ok, err := s.kv.Get(ctx, Key(strings.TrimSpace(mediaID)))
	if err != nil {
		s.log.Warn("progress load failed", zap.String("media_id", mediaID), zap.Error(err))
		return 0, false
	}
	if !ok {
		return 0, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, false
	}
	ts, present := fields["timestamp"]
	if !present {
		return 0, false
	}
	var seconds float64
	if err := json.Unmarshal(ts, &seconds); err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}

// Apply stores a raw player message and reports whether it was kept.
// Non-JSON payloads and messages without an id are dropped silently.
func (s *Store) Apply(ctx context.Context, payload []byte) bool {
	if err := s.Put(ctx, payload); err != nil {
		if !errors.Is(err, ErrIgnored) {
			s.log.Warn("progress message not stored", zap.Error(err))
		}
		return false
	}
	return true
}

// Put stores payload verbatim under the key of its id.
func (s *Store) Put(ctx context.Context, payload []byte) error {
	id, ok := MessageID(payload)
	if !ok {
		return ErrIgnored
	}
	return s.kv.Set(ctx, Key(id), payload)
}

// MessageID extracts the media id of a player message. The id may be a
// string or a number; empty strings and zero are treated as absent.
func MessageID(payload []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return "", false
	}
	switch v := fields["id"].(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case json.Number:
		return numericID(v)
	default:
		return "", false
	}
}

// numericID keeps integer ids exact at any size; only fractional or
// exponent forms go through float formatting.
func numericID(v json.Number) (string, bool) {
	raw := v.String()
	if !strings.ContainsAny(raw, ".eE") {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if n == 0 {
				return "", false
			}
			return strconv.FormatInt(n, 10), true
		}
		if strings.Trim(strings.TrimPrefix(raw, "-"), "0") == "" {
			return "", false
		}
		return raw, true
	}
	f, err := v.Float64()
	if err != nil || f == 0 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
