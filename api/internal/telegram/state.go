package telegram

import (
	"sync"
	"sync/atomic"

	"artvision-bot/api/internal/predict"
)

// chatState holds per-chat UI state. Sessions live in session.Store.
type chatState struct {
	kinds sync.Map // chatID -> predict.Kind
	seqs  sync.Map // chatID -> *atomic.Int64, bumped on every upload
}

func (s *chatState) kind(chatID int64) predict.Kind {
	if v, ok := s.kinds.Load(chatID); ok {
		if k, _ := v.(predict.Kind); k.Valid() {
			return k
		}
	}
	return predict.Binary
}

func (s *chatState) setKind(chatID int64, k predict.Kind) { s.kinds.Store(chatID, k) }

func (s *chatState) counter(chatID int64) *atomic.Int64 {
	v, _ := s.seqs.LoadOrStore(chatID, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// nextSeq marks a new upload and returns its number.
func (s *chatState) nextSeq(chatID int64) int64 { return s.counter(chatID).Add(1) }

// isLatest reports whether seq is still the newest upload of the chat.
func (s *chatState) isLatest(chatID, seq int64) bool { return s.counter(chatID).Load() == seq }
