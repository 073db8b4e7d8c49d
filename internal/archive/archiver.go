package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/knostra/knostrad/internal/domain"
)

// Uploader is the blob sink the archiver writes snapshots to.
type Uploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Snapshot is one archived market: the terminal market row, its treasury,
// and every bet, captured together.
type Snapshot struct {
	Market     domain.Market   `json:"market"`
	Treasury   domain.Treasury `json:"treasury"`
	Bets       []domain.Bet    `json:"bets"`
	ArchivedAt time.Time       `json:"archived_at"`
}

// Archiver snapshots terminal markets to the object store on a schedule. It
// only reads; nothing is deleted from the primary store.
type Archiver struct {
	store    domain.Store
	uploader Uploader
	clock    domain.Clock
	logger   *slog.Logger

	// minAge keeps freshly settled markets out of the snapshot until their
	// claims have had time to drain.
	minAge time.Duration
}

// NewArchiver creates an Archiver.
func NewArchiver(store domain.Store, uploader Uploader, minAge time.Duration, clock domain.Clock, logger *slog.Logger) *Archiver {
	if clock == nil {
		clock = domain.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		store:    store,
		uploader: uploader,
		clock:    clock,
		logger:   logger.With(slog.String("component", "archiver")),
		minAge:   minAge,
	}
}

// Run archives on the given interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if count, err := a.ArchiveSettled(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			} else if count > 0 {
				a.logger.InfoContext(ctx, "archive run complete", slog.Int("markets", count))
			}
		}
	}
}

// ArchiveSettled snapshots every terminal market older than minAge into one
// JSONL object keyed by run date and returns the number of markets written.
func (a *Archiver) ArchiveSettled(ctx context.Context) (int, error) {
	now := a.clock()
	markets, err := a.store.Markets().ListTerminal(ctx, now.Add(-a.minAge))
	if err != nil {
		return 0, fmt.Errorf("archive: list terminal markets: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range markets {
		snap, err := a.snapshot(ctx, m, now)
		if err != nil {
			return 0, err
		}
		if err := enc.Encode(snap); err != nil {
			return 0, fmt.Errorf("archive: encode market %d: %w", m.MarketID, err)
		}
	}

	path := fmt.Sprintf("settlements/%s/%d.jsonl", now.Format("2006-01-02"), now.Unix())
	if err := a.uploader.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return 0, err
	}

	a.logger.InfoContext(ctx, "settlement snapshot uploaded",
		slog.String("path", path),
		slog.Int("markets", len(markets)),
	)
	return len(markets), nil
}

func (a *Archiver) snapshot(ctx context.Context, m domain.Market, now time.Time) (Snapshot, error) {
	ref := m.Ref()
	treasury, err := a.store.Treasuries().Get(ctx, ref)
	if err != nil {
		return Snapshot{}, fmt.Errorf("archive: treasury %d: %w", m.MarketID, err)
	}

	var bets []domain.Bet
	for offset := 0; ; offset += 500 {
		page, err := a.store.Bets().ListByMarket(ctx, ref, domain.ListOpts{Limit: 500, Offset: offset})
		if err != nil {
			return Snapshot{}, fmt.Errorf("archive: bets %d: %w", m.MarketID, err)
		}
		bets = append(bets, page...)
		if len(page) < 500 {
			break
		}
	}

	return Snapshot{
		Market:     m,
		Treasury:   treasury,
		Bets:       bets,
		ArchivedAt: now,
	}, nil
}
