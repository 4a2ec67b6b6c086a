package alert

import (
	"context"
	"sync"
	"time"

	alertDomain "market-alert-agent/internal/domain/alert"
)

// MemoryHistory 為預設的記憶體警報歷史，條目依時間遞增保存並隨修剪淘汰。
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []alertDomain.HistoryEntry
}

// NewMemoryHistory 建立空的記憶體歷史。
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Append 追加一筆警報記錄。
func (h *MemoryHistory) Append(_ context.Context, entry alertDomain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

// CountByTypeSince 計算 since 之後同類型的警報數。
func (h *MemoryHistory) CountByTypeSince(_ context.Context, typ alertDomain.AlertType, since time.Time) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, e := range h.entries {
		if e.Type == typ && e.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

// CountSince 計算 since（含）之後的警報數。
func (h *MemoryHistory) CountSince(_ context.Context, since time.Time) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, e := range h.entries {
		if !e.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// Last 回傳最近一筆記錄；歷史為空時回傳 nil。
func (h *MemoryHistory) Last(_ context.Context) (*alertDomain.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return nil, nil
	}
	last := h.entries[len(h.entries)-1]
	return &last, nil
}

// Total 回傳目前保存的警報總數。
func (h *MemoryHistory) Total(_ context.Context) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries), nil
}

// Prune 移除 before 之前的舊記錄，讓歷史維持有界。
func (h *MemoryHistory) Prune(_ context.Context, before time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.entries[:0]
	for _, e := range h.entries {
		if !e.Timestamp.Before(before) {
			kept = append(kept, e)
		}
	}
	h.entries = kept
	return nil
}
