package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "optionflow/internal/errors"
	"optionflow/internal/models"
)

// chainRow is one CSV record: a single option contract quote. Columns match
// the NSE bhavcopy-style exports the ingest scripts produce.
type chainRow struct {
	Symbol    string  `csv:"symbol"`
	Timestamp string  `csv:"timestamp"`
	Expiry    string  `csv:"expiry"`
	Spot      float64 `csv:"spot"`
	Futures   float64 `csv:"futures"`
	Strike    float64 `csv:"strike"`
	Side      string  `csv:"side"`
	LTP       float64 `csv:"ltp"`
	OI        int64   `csv:"oi"`
	Volume    int64   `csv:"volume"`
	IV        float64 `csv:"iv"`
	LotSize   int     `csv:"lot_size"`
}

const (
	timestampLayout = "2006-01-02 15:04:05"
	expiryLayout    = "2006-01-02"
)

// CSVSource reads chain snapshots from per-symbol CSV files in a directory.
// The expected file name is <SYMBOL>.csv (case preserved).
type CSVSource struct {
	dir string
}

// NewCSVSource creates a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Load reads and validates the symbol's chain file.
func (s *CSVSource) Load(ctx context.Context, symbol string) (*models.ChainSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no chain file for %s", apperrors.ErrDataNotFound, symbol)
		}
		return nil, fmt.Errorf("open chain file: %w", err)
	}
	defer f.Close()

	var rows []*chainRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, apperrors.NewChainError(symbol, 0, "csv", err)
	}

	return buildSnapshot(symbol, rows)
}

// buildSnapshot validates raw rows and assembles them into a snapshot.
// Any missing strike or unknown side aborts the whole snapshot: a partial
// chain silently skews every downstream aggregate.
func buildSnapshot(symbol string, rows []*chainRow) (*models.ChainSnapshot, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEmptySnapshot, symbol)
	}

	snap := &models.ChainSnapshot{Symbol: symbol}
	byStrike := make(map[float64]*models.StrikeQuote)

	for i, row := range rows {
		if row.Strike <= 0 {
			return nil, apperrors.NewChainError(symbol, i+1, "strike", fmt.Errorf("missing or non-positive strike"))
		}
		side := models.OptionSide(strings.ToUpper(strings.TrimSpace(row.Side)))
		if !side.Valid() {
			return nil, apperrors.NewChainError(symbol, i+1, "side", fmt.Errorf("unknown option side %q", row.Side))
		}
		if row.OI < 0 || row.Volume < 0 {
			return nil, apperrors.NewChainError(symbol, i+1, "oi", fmt.Errorf("negative OI or volume"))
		}

		if snap.Timestamp.IsZero() && row.Timestamp != "" {
			ts, err := time.Parse(timestampLayout, row.Timestamp)
			if err != nil {
				return nil, apperrors.NewChainError(symbol, i+1, "timestamp", err)
			}
			snap.Timestamp = ts
		}
		if snap.Expiry.IsZero() && row.Expiry != "" {
			exp, err := time.Parse(expiryLayout, row.Expiry)
			if err != nil {
				return nil, apperrors.NewChainError(symbol, i+1, "expiry", err)
			}
			snap.Expiry = exp
		}
		if snap.SpotPrice == 0 {
			snap.SpotPrice = row.Spot
		}
		if snap.FuturesPrice == 0 {
			snap.FuturesPrice = row.Futures
		}

		sq, ok := byStrike[row.Strike]
		if !ok {
			sq = &models.StrikeQuote{Strike: row.Strike, LotSize: row.LotSize}
			byStrike[row.Strike] = sq
		}
		leg := &models.LegQuote{LTP: row.LTP, OI: row.OI, Volume: row.Volume, IV: row.IV}
		if side == models.SideCall {
			sq.Call = leg
		} else {
			sq.Put = leg
		}
	}

	if snap.SpotPrice <= 0 {
		return nil, apperrors.NewChainError(symbol, 0, "spot", fmt.Errorf("missing spot price"))
	}
	if snap.FuturesPrice <= 0 {
		// Futures quote optional in file drops; spot is the fallback proxy.
		snap.FuturesPrice = snap.SpotPrice
	}
	if !snap.Timestamp.IsZero() && !snap.Expiry.IsZero() {
		snap.DaysToExpiry = snap.Expiry.Sub(snap.Timestamp).Hours() / 24
		if snap.DaysToExpiry < 0 {
			snap.DaysToExpiry = 0
		}
	}

	strikes := make([]float64, 0, len(byStrike))
	for k := range byStrike {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)
	for _, k := range strikes {
		snap.Strikes = append(snap.Strikes, *byStrike[k])
	}

	return snap, nil
}

// OIObservations flattens a snapshot into per-contract OI samples for the
// velocity registry.
func OIObservations(snap *models.ChainSnapshot) []models.OISnapshot {
	out := make([]models.OISnapshot, 0, len(snap.Strikes)*2)
	for _, row := range snap.Strikes {
		if row.Call != nil {
			out = append(out, models.OISnapshot{
				Timestamp: snap.Timestamp,
				Symbol:    snap.Symbol,
				Strike:    row.Strike,
				Side:      models.SideCall,
				OI:        row.Call.OI,
				Volume:    row.Call.Volume,
			})
		}
		if row.Put != nil {
			out = append(out, models.OISnapshot{
				Timestamp: snap.Timestamp,
				Symbol:    snap.Symbol,
				Strike:    row.Strike,
				Side:      models.SidePut,
				OI:        row.Put.OI,
				Volume:    row.Put.Volume,
			})
		}
	}
	return out
}
