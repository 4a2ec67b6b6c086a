package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alertDomain "market-alert-agent/internal/domain/alert"
)

// AlertHistoryRepo 以 Postgres 保存警報歷史，實作 alert.HistoryStore。
type AlertHistoryRepo struct {
	db *sql.DB
}

// NewAlertHistoryRepo 建立警報歷史存取實例。
func NewAlertHistoryRepo(db *sql.DB) *AlertHistoryRepo {
	return &AlertHistoryRepo{db: db}
}

// Append 寫入一筆已發出的警報。
func (r *AlertHistoryRepo) Append(ctx context.Context, entry alertDomain.HistoryEntry) error {
	const q = `
INSERT INTO alert_history (alert_type, confidence, fired_at, last_close, predicted_close, percent_change, volatility, trend)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.db.ExecContext(ctx, q,
		string(entry.Type),
		string(entry.Confidence),
		entry.Timestamp,
		entry.Metrics.LastClose,
		entry.Metrics.PredictedClose,
		entry.Metrics.PercentChange,
		entry.Metrics.Volatility,
		string(entry.Metrics.Trend),
	)
	return err
}

// CountByTypeSince 計算 since 之後（不含）同類型警報數，供冷卻檢查。
func (r *AlertHistoryRepo) CountByTypeSince(ctx context.Context, typ alertDomain.AlertType, since time.Time) (int, error) {
	const q = `SELECT count(*) FROM alert_history WHERE alert_type = $1 AND fired_at > $2;`
	var n int
	if err := r.db.QueryRowContext(ctx, q, string(typ), since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountSince 計算 since 之後（含）所有警報數，供每日上限檢查。
func (r *AlertHistoryRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	const q = `SELECT count(*) FROM alert_history WHERE fired_at >= $1;`
	var n int
	if err := r.db.QueryRowContext(ctx, q, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Last 取最近一筆警報；沒有歷史時回傳 nil。
func (r *AlertHistoryRepo) Last(ctx context.Context) (*alertDomain.HistoryEntry, error) {
	const q = `
SELECT alert_type, confidence, fired_at, last_close, predicted_close, percent_change, volatility, trend
FROM alert_history
ORDER BY fired_at DESC
LIMIT 1;
`
	var entry alertDomain.HistoryEntry
	var typ, confidence, trend string
	err := r.db.QueryRowContext(ctx, q).Scan(
		&typ,
		&confidence,
		&entry.Timestamp,
		&entry.Metrics.LastClose,
		&entry.Metrics.PredictedClose,
		&entry.Metrics.PercentChange,
		&entry.Metrics.Volatility,
		&trend,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry.Type = alertDomain.AlertType(typ)
	entry.Confidence = alertDomain.ConfidenceLevel(confidence)
	entry.Metrics.Trend = alertDomain.Trend(trend)
	return &entry, nil
}

// Total 回傳警報總數。
func (r *AlertHistoryRepo) Total(ctx context.Context) (int, error) {
	const q = `SELECT count(*) FROM alert_history;`
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Prune 刪除 before 之前（不含）的警報。
func (r *AlertHistoryRepo) Prune(ctx context.Context, before time.Time) error {
	const q = `DELETE FROM alert_history WHERE fired_at < $1;`
	_, err := r.db.ExecContext(ctx, q, before)
	return err
}
