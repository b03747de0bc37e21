package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/icodeforyou/bessquote/quote"
)

type BenchmarkPriceRow struct {
	Equipment string
	Tier      string  // empty applies to every tier
	MinSize   float64 // smallest size the price applies to
	quote.BenchmarkPrice
}

func (d *Database) SaveBenchmarkPrice(ctx context.Context, r BenchmarkPriceRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO benchmark_price (equipment, tier, min_size, price, unit, source, confidence, vintage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (equipment, tier, min_size) DO UPDATE SET
			price = excluded.price,
			unit = excluded.unit,
			source = excluded.source,
			confidence = excluded.confidence,
			vintage = excluded.vintage`,
		r.Equipment,
		r.Tier,
		r.MinSize,
		r.Price,
		r.Unit,
		r.Source,
		string(r.Confidence),
		r.Vintage)
	if err != nil {
		return fmt.Errorf("saving benchmark price: %w", err)
	}
	return nil
}

// LookupBenchmark returns the price of equipment for the largest size band
// not above size. A price for the tier wins over one for every tier. It has
// the signature of quote.BenchmarkLookup.
func (d *Database) LookupBenchmark(ctx context.Context, equipment, tier string, size float64) (quote.BenchmarkPrice, error) {
	var bp quote.BenchmarkPrice
	var confidence string
	err := d.read.QueryRowContext(ctx, `
		SELECT price, unit, source, confidence, vintage
		FROM benchmark_price
		WHERE equipment = ? AND tier IN (?, '') AND min_size <= ?
		ORDER BY tier = '', min_size DESC
		LIMIT 1`,
		equipment, tier, size).Scan(&bp.Price, &bp.Unit, &bp.Source, &confidence, &bp.Vintage)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.BenchmarkPrice{}, fmt.Errorf("benchmark price for %s: %w", equipment, ErrNotFound)
	}
	if err != nil {
		return quote.BenchmarkPrice{}, fmt.Errorf("fetching benchmark price: %w", err)
	}
	bp.Confidence = quote.Confidence(confidence)
	return bp, nil
}
