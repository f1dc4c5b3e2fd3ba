package progress

import "io"

// Reader wraps an io.Reader and reports cumulative progress via a callback.
// Reports are throttled to one per interval bytes so callers can persist
// progress without hammering storage.
type Reader struct {
	reader     io.Reader
	total      int64
	onProgress func(written int64, total int64)

	written   int64 // cumulative bytes read
	sinceLast int64 // bytes since last report
	interval  int64
}

func NewReader(r io.Reader, total int64, interval int64, cb func(written int64, total int64)) *Reader {
	if interval <= 0 {
		interval = 1
	}

	return &Reader{
		reader:     r,
		total:      total,
		onProgress: cb,
		interval:   interval,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.written += int64(n)
		pr.sinceLast += int64(n)

		if pr.sinceLast >= pr.interval {
			pr.report()
		}
	}

	if err == io.EOF && pr.sinceLast > 0 {
		// flush the final partial interval so the last report is exact
		pr.report()
	}

	return n, err
}

// Written returns the cumulative number of bytes read so far.
func (pr *Reader) Written() int64 {
	return pr.written
}

func (pr *Reader) report() {
	if pr.onProgress != nil {
		pr.onProgress(pr.written, pr.total)
	}

	pr.sinceLast = 0
}
