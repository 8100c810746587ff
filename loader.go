package arbor

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"

	// Decoders for LoadImageFile and FSLoader.
	_ "image/jpeg"
	_ "image/png"

	"github.com/hajimehoshi/ebiten/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// loadResult is what a loader goroutine hands back to the render goroutine.
type loadResult struct {
	src *TextureSource
	seq uint64
	img image.Image
	err error
}

// textureLoader decodes texture sources on worker goroutines. At most
// limit decodes run at once. Results are applied on the render goroutine
// by drain, which the stage calls at frame start; the GPU image is created
// there. close cancels every load and waits for the workers.
type textureLoader struct {
	sem      *semaphore.Weighted
	results  chan loadResult
	inflight int

	ctx     context.Context
	stop    context.CancelFunc
	workers errgroup.Group
	closed  bool
}

func newTextureLoader(limit int) *textureLoader {
	ctx, stop := context.WithCancel(context.Background())
	return &textureLoader{
		sem:     semaphore.NewWeighted(int64(max(limit, 1))),
		results: make(chan loadResult, 64),
		ctx:     ctx,
		stop:    stop,
	}
}

// close cancels outstanding loads and waits until every worker returned.
// Results not drained yet are dropped.
func (l *textureLoader) close() {
	if l.closed {
		return
	}
	l.closed = true
	l.stop()
	l.workers.Wait()
	l.inflight = 0
}

// request starts loading s. The source's sequence number identifies the
// request, so a result arriving after a cancel or a newer request is
// discarded.
func (l *textureLoader) request(s *TextureSource) {
	if l.closed {
		return
	}
	ctx, cancel := context.WithCancel(l.ctx)
	s.seq++
	s.cancel = cancel
	s.state = SourceLoading
	l.inflight++

	seq, load := s.seq, s.load
	l.workers.Go(func() error {
		r := loadResult{src: s, seq: seq}
		if err := l.sem.Acquire(ctx, 1); err != nil {
			r.err = err
		} else {
			r.img, r.err = load(ctx)
			l.sem.Release(1)
			if r.img == nil && r.err == nil {
				r.err = ErrNoImage
			}
		}
		select {
		case l.results <- r:
		case <-l.ctx.Done():
		}
		return nil
	})
}

// drain applies every result that is ready without blocking and returns how
// many were applied.
func (l *textureLoader) drain() int {
	if l.closed {
		return 0
	}
	n := 0
	for {
		select {
		case r := <-l.results:
			l.apply(r)
			n++
		default:
			return n
		}
	}
}

// await applies results until no load is in flight or ctx is done.
func (l *textureLoader) await(ctx context.Context) error {
	for !l.closed && l.inflight > 0 {
		select {
		case r := <-l.results:
			l.apply(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (l *textureLoader) apply(r loadResult) {
	l.inflight--
	s := r.src
	switch {
	case s.state == SourceDisposed:
		logger.Debug("arbor: dropping texture load", "source", s.Name, "reason", ErrSourceDisposed)
	case r.seq != s.seq || s.state != SourceLoading:
		logger.Debug("arbor: dropping texture load", "source", s.Name, "reason", ErrStaleLoad)
	case r.err != nil:
		err := fmt.Errorf("arbor: loading texture %q: %w", s.Name, r.err)
		logError(err)
		s.failed(err)
	default:
		s.loaded(ebiten.NewImageFromImage(r.img))
	}
}

// LoadImageFile returns a LoadFunc decoding the image file at path. PNG,
// JPEG, BMP and WebP are supported.
func LoadImageFile(path string) LoadFunc {
	return func(ctx context.Context) (image.Image, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return decodeImage(ctx, f)
	}
}

// FSLoader returns a LoadFunc decoding the named image from fsys, such as
// an embed.FS.
func FSLoader(fsys fs.FS, name string) LoadFunc {
	return func(ctx context.Context) (image.Image, error) {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return decodeImage(ctx, f)
	}
}

func decodeImage(ctx context.Context, r io.Reader) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
