package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/icodeforyou/bessquote/quote"
)

var ErrNotFound = errors.New("not found")

type QuoteRow struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"createdAt"`
	Industry   string          `json:"industry"`
	Confidence quote.Status    `json:"confidence"`
	Signature  string          `json:"signature"`
	Document   json.RawMessage `json:"quote,omitempty"`
}

// SaveQuote stores an authenticated quote under a new id and returns it.
func (d *Database) SaveQuote(ctx context.Context, industry string, q *quote.AuthenticatedQuote) (string, error) {
	doc, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encoding quote: %w", err)
	}

	id := uuid.NewString()
	_, err = d.write.ExecContext(ctx, `
		INSERT INTO quote (id, created_at, industry, confidence, signature, document)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		formatTime(q.Timestamp()),
		industry,
		string(q.Confidence()),
		q.Signature(),
		string(doc))
	if err != nil {
		return "", fmt.Errorf("saving quote: %w", err)
	}
	return id, nil
}

func (d *Database) GetQuote(ctx context.Context, id string) (QuoteRow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return QuoteRow{}, fmt.Errorf("quote %q: %w", id, ErrNotFound)
	}

	var r QuoteRow
	var ts, confidence, doc string
	err := d.read.QueryRowContext(ctx, `
		SELECT id, created_at, industry, confidence, signature, document
		FROM quote
		WHERE id = ?`, id).Scan(&r.ID, &ts, &r.Industry, &confidence, &r.Signature, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return QuoteRow{}, fmt.Errorf("quote %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return QuoteRow{}, fmt.Errorf("fetching quote: %w", err)
	}

	r.CreatedAt, err = parseTime(ts)
	if err != nil {
		return QuoteRow{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	r.Confidence = quote.Status(confidence)
	r.Document = json.RawMessage(doc)
	return r, nil
}

// ListQuotes returns the newest quotes first, without their documents.
func (d *Database) ListQuotes(ctx context.Context, page, pageSize int) ([]QuoteRow, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT id, created_at, industry, confidence, signature
		FROM quote
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching quotes: %w", err)
	}
	defer rows.Close()

	var ts, confidence string
	var quotes []QuoteRow
	for rows.Next() {
		var r QuoteRow
		if err := rows.Scan(&r.ID, &ts, &r.Industry, &confidence, &r.Signature); err != nil {
			return nil, err
		}
		r.CreatedAt, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		r.Confidence = quote.Status(confidence)
		quotes = append(quotes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading quote rows: %w", err)
	}

	return quotes, nil
}

func (d *Database) PurgeQuotes(ctx context.Context, retentionDays int) error {
	return d.purgeBefore(ctx, "quote", "created_at", retentionDays)
}
