package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icodeforyou/bessquote/quote"
)

type UtilityRateRow struct {
	Country      string
	State        string
	Region       string // empty applies to the whole state
	EnergyRate   float64
	DemandCharge float64
	Currency     string
	Source       string
	Confidence   quote.Confidence
	UpdatedAt    time.Time
}

func (d *Database) SaveUtilityRate(ctx context.Context, r UtilityRateRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO utility_rate (country, state, region, energy_rate, demand_charge, currency, source, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (country, state, region) DO UPDATE SET
			energy_rate = excluded.energy_rate,
			demand_charge = excluded.demand_charge,
			currency = excluded.currency,
			source = excluded.source,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		strings.ToLower(r.Country),
		strings.ToLower(r.State),
		strings.ToLower(r.Region),
		r.EnergyRate,
		r.DemandCharge,
		r.Currency,
		r.Source,
		string(r.Confidence),
		formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving utility rate: %w", err)
	}
	return nil
}

// LookupRate returns the rate of the location's region, or of its state when
// the region has none. It has the signature of quote.RateLookup.
func (d *Database) LookupRate(ctx context.Context, loc quote.Location) (quote.RateContext, error) {
	var rc quote.RateContext
	var confidence string
	err := d.read.QueryRowContext(ctx, `
		SELECT energy_rate, demand_charge, currency, source, confidence
		FROM utility_rate
		WHERE country = ? AND state = ? AND region IN (?, '')
		ORDER BY region DESC
		LIMIT 1`,
		strings.ToLower(loc.Country),
		strings.ToLower(loc.State),
		strings.ToLower(loc.Region)).Scan(&rc.EnergyRate, &rc.DemandCharge, &rc.Currency, &rc.Source, &confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.RateContext{}, fmt.Errorf("utility rate for %s/%s: %w", loc.Country, loc.State, ErrNotFound)
	}
	if err != nil {
		return quote.RateContext{}, fmt.Errorf("fetching utility rate: %w", err)
	}
	rc.Confidence = quote.Confidence(confidence)
	return rc, nil
}
