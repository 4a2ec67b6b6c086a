package agent

import (
	"context"
	"log"
	"time"
)

// BackgroundWorker 依固定間隔對追蹤清單重跑評估流程。
type BackgroundWorker struct {
	orch     *Orchestrator
	symbols  []string
	interval time.Duration
	stopChan chan struct{}
}

// NewBackgroundWorker 建立背景工作者。
func NewBackgroundWorker(orch *Orchestrator, symbols []string, interval time.Duration) *BackgroundWorker {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &BackgroundWorker{
		orch:     orch,
		symbols:  symbols,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start 啟動迴圈。
func (w *BackgroundWorker) Start() {
	log.Printf("[Worker] Starting alert worker with interval: %v symbols: %v", w.interval, w.symbols)
	ticker := time.NewTicker(w.interval)
	go func() {
		// 啟動後立即執行一次
		w.runOnce()

		for {
			select {
			case <-ticker.C:
				w.runOnce()
			case <-w.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop 停止迴圈。
func (w *BackgroundWorker) Stop() {
	close(w.stopChan)
}

func (w *BackgroundWorker) runOnce() {
	ctx := context.Background()
	for _, symbol := range w.symbols {
		outcome, err := w.orch.Run(ctx, symbol)
		if err != nil {
			log.Printf("[Worker] evaluation failed symbol=%s: %v", symbol, err)
			continue
		}
		if outcome.Decision.ShouldAlert {
			log.Printf("[Worker] ALERT symbol=%s type=%s confidence=%s", symbol, outcome.Decision.Type, outcome.Decision.Confidence)
		} else if outcome.Decision.Suppressed {
			log.Printf("[Worker] alert suppressed symbol=%s reason=%q", symbol, outcome.Decision.SuppressionReason)
		} else {
			log.Printf("[Worker] no alert symbol=%s change=%+.2f%%", symbol, outcome.Decision.Metrics.PercentChange)
		}
	}
}
