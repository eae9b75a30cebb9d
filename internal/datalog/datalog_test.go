package datalog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestOpenCreatesBothFilesWithHeaders(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "BTCUSD")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	tradeRows := readCSV(t, filepath.Join(dir, "BTCUSD_trades.csv"))
	if len(tradeRows) != 1 {
		t.Fatalf("expected only the header row, got %d rows", len(tradeRows))
	}

	bboRows := readCSV(t, filepath.Join(dir, "BTCUSD_bbo.csv"))
	if len(bboRows) != 1 || len(bboRows[0]) != len(bboHeader) {
		t.Fatalf("expected bbo header with %d columns, got %v", len(bboHeader), bboRows)
	}
}

func TestLogTradeAppendsRow(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "ETHUSD")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.LogTrade(types.VenueMaker, types.Sell, decimal.NewFromInt(100), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("LogTrade: %v", err)
	}
	if err := l.LogTrade(types.VenueTaker, types.Buy, decimal.NewFromFloat(99.5), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("LogTrade: %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, "ETHUSD_trades.csv"))
	if len(rows) != 3 { // header + 2 rows
		t.Fatalf("expected 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[1][0] != "maker" || rows[1][2] != "SELL" || rows[1][3] != "100" {
		t.Errorf("unexpected first trade row: %v", rows[1])
	}
}

func TestLogBBOAppendsRowWithSignalColumns(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "ETHUSD")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	maker := types.BBOQuote{Bid: decimal.NewFromInt(100), Ask: decimal.NewFromInt(101)}
	taker := types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(102)}

	if err := l.LogBBO(maker, taker, decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(5), decimal.NewFromInt(5), true, false); err != nil {
		t.Fatalf("LogBBO: %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, "ETHUSD_bbo.csv"))
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	row := rows[1]
	longSignalIdx := indexOf(bboHeader, "long_signal")
	shortSignalIdx := indexOf(bboHeader, "short_signal")
	if row[longSignalIdx] != "true" {
		t.Errorf("expected long_signal column true, got %q", row[longSignalIdx])
	}
	if row[shortSignalIdx] != "false" {
		t.Errorf("expected short_signal column false, got %q", row[shortSignalIdx])
	}
}

func TestOpenAppendsRatherThanTruncatesExistingFile(t *testing.T) {
	dir := t.TempDir()

	l1, err := Open(dir, "SOLUSD")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l1.LogTrade(types.VenueMaker, types.Buy, decimal.NewFromInt(10), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("LogTrade: %v", err)
	}
	if err := l1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(dir, "SOLUSD")
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer l2.Close()
	if err := l2.LogTrade(types.VenueMaker, types.Sell, decimal.NewFromInt(11), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("LogTrade: %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, "SOLUSD_trades.csv"))
	if len(rows) != 3 { // one header, two trades across two Open() calls
		t.Fatalf("expected 3 rows after reopening and appending, got %d: %v", len(rows), rows)
	}
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
