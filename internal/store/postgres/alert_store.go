package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL. The contributing
// trade breakdown is stored alongside the aggregates as JSONB.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// tradeRow is the per-trade JSON shape persisted in the trades column.
// Exchange, pair, and market URL live on the alert row and are not repeated.
type tradeRow struct {
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	ValueUSD  decimal.Decimal `json:"value_usd"`
	Side      string          `json:"side"`
	Timestamp time.Time       `json:"timestamp"`
}

// Insert stores one dispatched alert.
func (s *AlertStore) Insert(ctx context.Context, alert domain.AlertEvent) error {
	trades, err := marshalTrades(alert.Trades)
	if err != nil {
		return fmt.Errorf("postgres: encode trades for alert %s: %w", alert.ID, err)
	}

	const query = `
		INSERT INTO alerts (
			id, kind, exchange, pair,
			total_value, total_quantity, vwap, trade_count, trades,
			market_url, triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		alert.ID, string(alert.Kind), alert.Exchange, alert.Pair,
		alert.TotalValue, alert.TotalQuantity, alert.VWAP, len(alert.Trades), trades,
		alert.MarketURL, alert.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert alert %s: %w", alert.ID, err)
	}
	return nil
}

// ListRecent returns up to limit alerts, newest first.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, kind, exchange, pair,
		       total_value, total_quantity, vwap, trades,
		       market_url, triggered_at
		FROM alerts
		ORDER BY triggered_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent alerts: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlertRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return alerts, nil
}

// DeleteBefore prunes alerts older than the cutoff and returns the number of
// rows removed.
func (s *AlertStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM alerts WHERE triggered_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete alerts before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func scanAlertRows(rows pgx.Rows) ([]domain.AlertEvent, error) {
	var alerts []domain.AlertEvent
	for rows.Next() {
		var (
			a      domain.AlertEvent
			kind   string
			trades []byte
		)
		if err := rows.Scan(
			&a.ID, &kind, &a.Exchange, &a.Pair,
			&a.TotalValue, &a.TotalQuantity, &a.VWAP, &trades,
			&a.MarketURL, &a.TriggeredAt,
		); err != nil {
			return nil, err
		}
		a.Kind = domain.AlertKind(kind)

		var err error
		a.Trades, err = unmarshalTrades(trades, a.Exchange, a.Pair, a.MarketURL)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func marshalTrades(trades []domain.TradeRecord) ([]byte, error) {
	rows := make([]tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, tradeRow{
			Price:     t.Price,
			Quantity:  t.Quantity,
			ValueUSD:  t.ValueUSD,
			Side:      string(t.Side),
			Timestamp: t.Timestamp,
		})
	}
	return json.Marshal(rows)
}

func unmarshalTrades(data []byte, exchange, pair, marketURL string) ([]domain.TradeRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rows []tradeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	trades := make([]domain.TradeRecord, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, domain.TradeRecord{
			Exchange:  exchange,
			Pair:      pair,
			Price:     r.Price,
			Quantity:  r.Quantity,
			ValueUSD:  r.ValueUSD,
			Side:      domain.TradeSide(r.Side),
			Timestamp: r.Timestamp,
			MarketURL: marketURL,
		})
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.AlertStore = (*AlertStore)(nil)
