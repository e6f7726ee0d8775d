package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/folios/internal/domain"
)

// unixOrNil converts an optional timestamp to its unix-seconds column value.
func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func timeUTC(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}

// nilable erases the concrete pointer type so a nil pointer stores as NULL
// instead of the JSON literal "null".
func nilable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}

// timeFromUnix converts a nullable unix-seconds column back to a UTC pointer.
func timeFromUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// marshalMap encodes a string map as its JSON column value. Nil maps store
// as the empty object so scans never round-trip through NULL.
func marshalMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMap(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal json column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalRiskControls(raw sql.NullString) (*domain.RiskControls, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	rc := &domain.RiskControls{}
	if err := json.Unmarshal([]byte(raw.String), rc); err != nil {
		return nil, fmt.Errorf("unmarshal risk controls: %w", err)
	}
	return rc, nil
}

func unmarshalScreener(raw sql.NullString) (*domain.ScreenerConfig, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	sc := &domain.ScreenerConfig{}
	if err := json.Unmarshal([]byte(raw.String), sc); err != nil {
		return nil, fmt.Errorf("unmarshal screener config: %w", err)
	}
	return sc, nil
}

func marshalTickers(tickers []string) (string, error) {
	if tickers == nil {
		tickers = []string{}
	}
	data, err := json.Marshal(tickers)
	if err != nil {
		return "", fmt.Errorf("marshal tickers: %w", err)
	}
	return string(data), nil
}

func unmarshalTickers(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var tickers []string
	if err := json.Unmarshal([]byte(raw), &tickers); err != nil {
		return nil, fmt.Errorf("unmarshal tickers: %w", err)
	}
	return tickers, nil
}
