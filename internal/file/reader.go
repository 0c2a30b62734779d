package file

import (
	"errors"
	"io"
)

var errSizeExceeded = errors.New("size limit exceeded")

// progressReader counts bytes read from the request body and reports the
// percentage of total whenever it grows. Reported values stay below 100;
// completion is announced separately once the upload is committed.
type progressReader struct {
	r        io.Reader
	total    int64
	observed int64
	last     int
	report   func(percent int)
}

func newProgressReader(r io.Reader, total int64, report func(int)) *progressReader {
	return &progressReader{r: r, total: total, last: -1, report: report}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.observed += int64(n)
		if p.total > 0 {
			percent := int(p.observed * 100 / p.total)
			if percent > 99 {
				percent = 99
			}
			if percent > p.last {
				p.last = percent
				p.report(percent)
			}
		}
	}
	return n, err
}

// sizeLimiter fails the read once more than remaining bytes were seen and
// remembers why reading stopped.
type sizeLimiter struct {
	r         io.Reader
	remaining int64
	exceeded  bool
	readErr   error
}

func (l *sizeLimiter) Read(buf []byte) (int, error) {
	if l.exceeded {
		return 0, errSizeExceeded
	}
	n, err := l.r.Read(buf)
	if int64(n) > l.remaining {
		l.exceeded = true
		return 0, errSizeExceeded
	}
	l.remaining -= int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		l.readErr = err
	}
	return n, err
}
