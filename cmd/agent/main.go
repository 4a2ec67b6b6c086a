package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	agentApp "market-alert-agent/internal/application/agent"
	alertApp "market-alert-agent/internal/application/alert"
	"market-alert-agent/internal/application/explain"
	"market-alert-agent/internal/application/forecast"
	"market-alert-agent/internal/infrastructure/config"
	"market-alert-agent/internal/infrastructure/db"
	"market-alert-agent/internal/infrastructure/llm"
	csvdata "market-alert-agent/internal/infrastructure/marketdata"
	alpacadata "market-alert-agent/internal/infrastructure/marketdata/alpaca"
	binancedata "market-alert-agent/internal/infrastructure/marketdata/binance"
	"market-alert-agent/internal/infrastructure/notify"
	"market-alert-agent/internal/infrastructure/persistence/postgres"
	"market-alert-agent/internal/infrastructure/recorder"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	dataPath := flag.String("data", "", "override CSV data file path")
	symbol := flag.String("symbol", "", "evaluate a single symbol instead of the configured watch list")
	preset := flag.String("preset", "", "alert preset: moderate, conservative or aggressive")
	batch := flag.Bool("batch", false, "replay history with a rolling window instead of a single evaluation")
	window := flag.Int("window", 10, "rolling window size for batch mode")
	watch := flag.Bool("watch", false, "keep running and re-evaluate on the configured interval")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("CRITICAL: load config failed: %v", err)
	}
	if *dataPath != "" {
		cfg.Data.Source = "csv"
		cfg.Data.CSVPath = *dataPath
	}
	if *preset != "" {
		cfg.Alert.Preset = *preset
	}

	symbols := cfg.Agent.Symbols
	if *symbol != "" {
		symbols = []string{*symbol}
	}
	log.Printf("configuration loaded (preset=%s source=%s symbols=%v)", cfg.Alert.Preset, cfg.Data.Source, symbols)

	// 資料庫連線失敗不致命，改用記憶體歷史儲存
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, cfg.DB)
	cancel()
	var history alertApp.HistoryStore
	if err != nil {
		log.Printf("warning: database connection failed, falling back to in-memory history: %v", err)
	} else if pool == nil {
		log.Printf("no DB_DSN provided; alert history kept in memory only")
	} else {
		defer pool.Close()
		log.Printf("database connected successfully")
		history = postgres.NewAlertHistoryRepo(pool)
	}

	engine := alertApp.NewEngine(engineConfig(cfg.Alert), history)

	var source agentApp.CandleSource
	switch cfg.Data.Source {
	case "alpaca":
		source = alpacadata.NewProvider(0)
	case "binance":
		source = binancedata.NewSource(0)
	default:
		source = csvdata.NewCSVSource(cfg.Data.CSVPath)
	}

	var completer explain.ChatCompleter
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		completer = llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.BaseURL)
		log.Printf("LLM explanations enabled (model=%s)", cfg.LLM.Model)
	} else {
		log.Printf("LLM explanations disabled; using template fallback")
	}

	fileRecorder, err := recorder.NewFileRecorder(cfg.Recorder.OutputDir)
	if err != nil {
		log.Fatalf("CRITICAL: init recorder failed: %v", err)
	}

	var notifier agentApp.Notifier
	if cfg.Notifier.Telegram.Enabled {
		if cfg.Notifier.Telegram.Token != "" && cfg.Notifier.Telegram.ChatID != 0 {
			notifier = notify.NewTelegramClient(cfg.Notifier.Telegram.Token, cfg.Notifier.Telegram.ChatID)
			log.Printf("telegram notifications enabled")
		} else {
			log.Printf("warning: telegram enabled but token/chat_id missing")
		}
	}

	orch := agentApp.NewOrchestrator(
		source,
		forecast.New(cfg.Agent.ForecastDays),
		engine,
		explain.New(completer),
		fileRecorder,
		notifier,
	)

	switch {
	case *watch:
		runWatch(orch, symbols, cfg.Agent.WatchInterval)
	case *batch:
		runBatch(orch, symbols, *window)
	default:
		runOnce(orch, symbols)
	}
}

// engineConfig 以 preset 為底，組態中非零欄位覆寫個別門檻。
func engineConfig(ac config.AlertConfig) alertApp.Config {
	cfg := alertApp.PresetConfig(ac.Preset)
	if ac.PriceDropThreshold > 0 {
		cfg.PriceDropThreshold = ac.PriceDropThreshold
	}
	if ac.PriceSpikeThreshold > 0 {
		cfg.PriceSpikeThreshold = ac.PriceSpikeThreshold
	}
	if ac.VolatilityThreshold > 0 {
		cfg.VolatilityThreshold = ac.VolatilityThreshold
	}
	if ac.Cooldown > 0 {
		cfg.AlertCooldown = ac.Cooldown
	}
	if ac.DailyLimit > 0 {
		cfg.DailyAlertLimit = ac.DailyLimit
	}
	return cfg
}

func runOnce(orch *agentApp.Orchestrator, symbols []string) {
	ctx := context.Background()
	failed := 0
	for _, s := range symbols {
		outcome, err := orch.Run(ctx, s)
		if err != nil {
			log.Printf("evaluation failed symbol=%s: %v", s, err)
			failed++
			continue
		}
		logOutcome(outcome)
	}
	if failed == len(symbols) {
		os.Exit(1)
	}
}

func runBatch(orch *agentApp.Orchestrator, symbols []string, window int) {
	ctx := context.Background()
	for _, s := range symbols {
		outcomes, err := orch.RunBatch(ctx, s, window)
		if err != nil {
			log.Printf("batch run failed symbol=%s: %v", s, err)
			continue
		}
		alerts := 0
		for _, o := range outcomes {
			if o.Decision.ShouldAlert {
				alerts++
			}
			logOutcome(o)
		}
		log.Printf("batch finished symbol=%s windows=%d alerts=%d", s, len(outcomes), alerts)
	}
}

func runWatch(orch *agentApp.Orchestrator, symbols []string, interval time.Duration) {
	worker := agentApp.NewBackgroundWorker(orch, symbols, interval)
	worker.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down...")
	worker.Stop()
}

func logOutcome(o agentApp.Outcome) {
	date := o.Date.Format("2006-01-02")
	switch {
	case o.Decision.ShouldAlert:
		log.Printf("ALERT symbol=%s date=%s type=%s confidence=%s reason=%q", o.Symbol, date, o.Decision.Type, o.Decision.Confidence, o.Decision.Reason)
		log.Printf("  %s", o.Explanation)
	case o.Decision.Suppressed:
		log.Printf("suppressed symbol=%s date=%s type=%s reason=%q", o.Symbol, date, o.Decision.Type, o.Decision.SuppressionReason)
	default:
		log.Printf("no alert symbol=%s date=%s change=%+.2f%%", o.Symbol, date, o.Decision.Metrics.PercentChange)
	}
}
