package export

import "time"

// ChunkLength bounds the footage requested by one export call.
const ChunkLength = time.Hour

// Window is one export request's time range, Start < End.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Windows splits [start, end) into consecutive chunks of ChunkLength. The
// cursor always advances by a full chunk, so only the last window can be
// shorter. Returns nil when end is not after start.
func Windows(start, end time.Time) []Window {
	var out []Window
	for cur := start; cur.Before(end); cur = cur.Add(ChunkLength) {
		wEnd := cur.Add(ChunkLength)
		if wEnd.After(end) {
			wEnd = end
		}
		out = append(out, Window{Start: cur, End: wEnd})
	}
	return out
}
