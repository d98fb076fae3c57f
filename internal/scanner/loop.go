package scanner

import (
	"context"
	"time"

	"optionflow/internal/logging"
)

// DefaultInterval is the scan cadence the velocity window math assumes.
const DefaultInterval = 3 * time.Minute

// MacroFunc supplies the macro inputs for a symbol at scan time.
type MacroFunc func(symbol string) MacroInputs

// Run polls the given symbols on a fixed interval until the context is
// cancelled. The first pass runs immediately. Per-symbol failures are
// logged inside Scan and never stop the loop.
func (s *Scanner) Run(ctx context.Context, symbols []string, interval time.Duration, macro MacroFunc) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if macro == nil {
		macro = func(string) MacroInputs { return MacroInputs{} }
	}

	s.scanAll(ctx, symbols, macro)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.scanAll(ctx, symbols, macro)
		}
	}
}

func (s *Scanner) scanAll(ctx context.Context, symbols []string, macro MacroFunc) {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		res, err := s.Scan(ctx, symbol, macro(symbol))
		if err != nil {
			continue
		}
		logging.LogScan(s.logger, symbol, len(res.Snapshot.Strikes), res.Elapsed)
	}
}
