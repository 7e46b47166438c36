package probe

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrNoDuration means the fetched bytes held no parseable container
// structure (no PTS pair, no mvhd box, no Duration element).
var ErrNoDuration = errors.New("no duration recoverable from container")

// ProbeDuration fetches the byte windows the container's prober needs and
// parses them into a detected play duration in seconds. totalSize must come
// from a prior TotalSize call. Head and tail fetches for transport streams
// run concurrently; if the server turns out not to honor ranges, the single
// returned buffer stands in for both ends.
func (f *Fetcher) ProbeDuration(ctx context.Context, t Target, c Container, totalSize int64) (int64, error) {
	headLen := c.HeadBytes()
	if headLen > totalSize {
		headLen = totalSize
	}

	var head, tail []byte
	var headSupportsRange bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		head, headSupportsRange, err = f.FetchRange(gctx, t, 0, headLen-1)
		return err
	})
	if c.NeedsTail() && totalSize > tailFetchBytes {
		g.Go(func() error {
			var err error
			var ok bool
			tail, ok, err = f.FetchRange(gctx, t, totalSize-tailFetchBytes, totalSize-1)
			if err == nil && !ok {
				// Server sent the file start again; useless as a tail.
				tail = nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if !headSupportsRange {
		tail = nil
	}

	seconds, ok := c.Duration(head, tail)
	if !ok {
		return 0, ErrNoDuration
	}
	return seconds, nil
}
