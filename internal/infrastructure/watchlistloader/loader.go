package watchlistloader

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const DefaultWatchlistFilePath = "data/watchlist.txt"

// WatchlistEntry is one line of a watchlist file: a token address and an
// optional entry price kept as the raw decimal string.
type WatchlistEntry struct {
	Address    string
	EntryPrice string
}

// WatchlistFileLoader reads token addresses from a plain-text file.
//
// Format: one "address [entryPrice]" pair per line, blank lines and lines
// starting with # are ignored.
type WatchlistFileLoader struct {
	filePath   string
	loggerInfo func(msg string, args ...any)
}

// NewWatchlistFileLoader creates a new WatchlistFileLoader. An empty path
// selects DefaultWatchlistFilePath.
func NewWatchlistFileLoader(filePath string, loggerInfo func(msg string, args ...any)) *WatchlistFileLoader {
	if filePath == "" {
		filePath = DefaultWatchlistFilePath
	}
	return &WatchlistFileLoader{
		filePath:   filePath,
		loggerInfo: loggerInfo,
	}
}

// Load reads all valid entries. Malformed lines are skipped and logged.
// Repeated addresses keep the last entry price, at the first position.
func (l *WatchlistFileLoader) Load() ([]WatchlistEntry, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open watchlist file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var entries []WatchlistEntry
	index := make(map[string]int)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 2 {
			if l.loggerInfo != nil {
				l.loggerInfo("Skipping malformed watchlist line", "file", l.filePath, "line_number", lineNum, "line", line)
			}
			continue
		}

		entry := WatchlistEntry{Address: fields[0]}
		if len(fields) == 2 {
			entry.EntryPrice = fields[1]
		}
		if i, ok := index[entry.Address]; ok {
			entries[i] = entry
			continue
		}
		index[entry.Address] = len(entries)
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning watchlist file %s: %w", l.filePath, err)
	}

	if l.loggerInfo != nil {
		l.loggerInfo("Watchlist loaded successfully from file", "count", len(entries), "path", l.filePath)
	}
	return entries, nil
}
