// Package numerator implements core/numerator.Generator on sys_sequences.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "ispledger/internal/core/numerator"
)

// Querier runs single-row queries.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc picks the querier for a call, typically the transaction
// carried by ctx.
type QuerierFunc func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service hands out sequence numbers.
//
// Strict numbers are taken through txQuerier so they commit or roll back with
// the operation that consumed them; settlement numbers stay gapless. Cached
// ranges are reserved on the pool: a range must never be handed out twice,
// even if the operation that triggered the reservation rolls back.
type Service struct {
	txQuerier QuerierFunc
	pool      Querier

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator that runs every query on q.
func New(q Querier) *Service {
	return NewWithTx(func(context.Context) Querier { return q }, q)
}

// NewWithTx creates a numerator whose strict numbers join the caller's transaction.
func NewWithTx(txQuerier QuerierFunc, pool Querier) *Service {
	return &Service{
		txQuerier: txQuerier,
		pool:      pool,
		ranges:    make(map[string]*cachedRange),
	}
}

// GetNextNumber returns the next formatted number, e.g. CO-2026-00001.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := buildKey(cfg, period)

	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, key, opts.RangeSize)
	default:
		num, err = s.nextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.txQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (key) DO UPDATE SET current_value = sys_sequences.current_value + 1, updated_at = NOW()
		RETURNING current_value
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next %s: %w", key, err)
	}
	return num, nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = 50
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		var newMax int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET current_value = sys_sequences.current_value + $2, updated_at = NOW()
			RETURNING current_value
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}
		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber makes value the next number handed out (data imports).
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := buildKey(cfg, period)

	var stored int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET current_value = $2, updated_at = NOW()
		RETURNING current_value
	`, key, value-1).Scan(&stored)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set next number %s: %w", key, err)
	}
	return nil
}

func buildKey(cfg corenumerator.Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

func formatNumber(cfg corenumerator.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the sequence part of a formatted number, or -1.
func ParseNumber(formatted string) int64 {
	idx := strings.LastIndex(formatted, "-")
	if idx < 0 || idx == len(formatted)-1 {
		return -1
	}
	n, err := strconv.ParseInt(formatted[idx+1:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}
