// Package datalog appends trade fills and periodic BBO snapshots to CSV
// files for offline PnL reconstruction and spread analysis, the same
// append-only ledger the reference bot keeps per run.
package datalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

var tradeHeader = []string{"venue", "timestamp", "side", "price", "quantity"}

var bboHeader = []string{
	"timestamp",
	"maker_bid", "maker_ask",
	"taker_bid", "taker_ask",
	"long_spread", "short_spread",
	"long_signal", "short_signal",
	"long_threshold", "short_threshold",
}

// Logger owns two append-only CSV files (trades, BBO snapshots), each
// opened once; every row is flushed as it is written.
type Logger struct {
	mu sync.Mutex

	tradeFile *os.File
	tradeW    *csv.Writer

	bboFile *os.File
	bboW    *csv.Writer

	tradeWrites int
}

// Open creates (or appends to) the trade and BBO CSV files under dir,
// named after ticker so multiple runs against the same market share a log.
func Open(dir, ticker string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create datalog dir: %w", err)
	}

	l := &Logger{}

	tradePath := filepath.Join(dir, fmt.Sprintf("%s_trades.csv", ticker))
	tf, tw, err := openAppendCSV(tradePath, tradeHeader)
	if err != nil {
		return nil, err
	}
	l.tradeFile, l.tradeW = tf, tw

	bboPath := filepath.Join(dir, fmt.Sprintf("%s_bbo.csv", ticker))
	bf, bw, err := openAppendCSV(bboPath, bboHeader)
	if err != nil {
		tf.Close()
		return nil, err
	}
	l.bboFile, l.bboW = bf, bw

	return l, nil
}

func openAppendCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
	}
	return f, w, nil
}

// LogTrade appends one fill row and flushes immediately: a trade record is
// worth more than the write-amplification of flushing every time.
func (l *Logger) LogTrade(v types.Venue, side types.Side, price, size decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		string(v),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(side),
		price.String(),
		size.String(),
	}
	if err := l.tradeW.Write(row); err != nil {
		return fmt.Errorf("write trade row: %w", err)
	}
	l.tradeW.Flush()
	l.tradeWrites++
	return l.tradeW.Error()
}

// LogBBO appends one BBO snapshot row. The caller controls cadence
// (typically ticked on an interval, not every quote). longSignal/shortSignal
// record whether that side's spread currently clears its threshold, for
// offline correlation between a logged opportunity and the trade it did (or
// didn't) produce.
func (l *Logger) LogBBO(maker, taker types.BBOQuote, longSpread, shortSpread, longThr, shortThr decimal.Decimal, longSignal, shortSignal bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		time.Now().UTC().Format(time.RFC3339Nano),
		maker.Bid.String(), maker.Ask.String(),
		taker.Bid.String(), taker.Ask.String(),
		longSpread.String(), shortSpread.String(),
		fmt.Sprintf("%t", longSignal), fmt.Sprintf("%t", shortSignal),
		longThr.String(), shortThr.String(),
	}
	if err := l.bboW.Write(row); err != nil {
		return fmt.Errorf("write bbo row: %w", err)
	}
	l.bboW.Flush()
	return l.bboW.Error()
}

// Close flushes and closes both files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tradeW.Flush()
	l.bboW.Flush()

	if err := l.tradeFile.Close(); err != nil {
		return err
	}
	return l.bboFile.Close()
}
