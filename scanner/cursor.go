package scanner

import (
	"os"
	"strconv"
	"strings"
)

// rewindWindow is the 14*144-block lookback the scanner applies at
// startup, so that channels opened shortly before a prior scan's tip get
// re-inspected once their closing transaction (if any) has had time to
// confirm and show up in the funding index.
const rewindWindow = 14 * 144

// ReadCursor reads the persisted cursor (the next block height to inspect)
// from path. A missing or empty file is not an error: it reports ok=false,
// and Scanner.Run then starts from the tip (before the rewind policy).
func ReadCursor(path string) (int64, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, false, nil
	}

	height, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return height, true, nil
}

// WriteCursor persists height as the next block height to inspect.
func WriteCursor(path string, height int64) error {
	return os.WriteFile(path, []byte(strconv.FormatInt(height, 10)), 0644)
}

// rewind applies the startup rewind policy: if the cursor is already
// within rewindWindow blocks of tip, it's forced back to tip-rewindWindow
// so recently-opened channels (which may not have been in the funding
// index when their close block was first scanned) get reinspected. A
// cursor that's further behind than that is left alone -- the catch-up
// scan will pass through the window naturally.
func rewind(cursor, tip int64) int64 {
	floor := tip - rewindWindow
	if floor < 0 {
		floor = 0
	}
	if cursor > floor {
		return floor
	}
	return cursor
}
