package main

import (
	"bufio"
	"context"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/wire"
)

const maxLineSize = 1 << 20

type importer interface {
	Import(ctx context.Context, rules []coupon.Rule) (int64, error)
}

type stats struct {
	Lines    int64
	Invalid  int64
	Deferred int64
	Inserted int64
}

// ingester streams coupon batches into the importer. Files are parsed
// concurrently and a single collector deduplicates codes across them.
//
// A code the bloom filter has not seen is new and goes straight into the
// current batch. A bloom hit is either a repeat or a false positive; those
// rules are held back, deduplicated exactly among themselves, and imported
// last so that the database conflict check keeps the first occurrence.
type ingester struct {
	lg        *zap.Logger
	importer  importer
	batchSize int
	capacity  uint
	fpr       float64
}

func (i *ingester) Run(ctx context.Context, files []string) (stats, error) {
	var (
		st      stats
		lines   atomic.Int64
		invalid atomic.Int64
	)
	rules := make(chan coupon.Rule, 1024)

	g, gctx := errgroup.WithContext(ctx)
	parsers, pctx := errgroup.WithContext(gctx)
	for _, path := range files {
		parsers.Go(func() error {
			fs, err := parseFile(pctx, i.lg, path, func(r coupon.Rule) error {
				select {
				case rules <- r:
					return nil
				case <-pctx.Done():
					return pctx.Err()
				}
			})
			lines.Add(fs.Lines)
			invalid.Add(fs.Invalid)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			i.lg.Info("Parsed batch file",
				zap.String("path", path),
				zap.Int64("lines", fs.Lines),
				zap.Int64("invalid", fs.Invalid),
			)
			return nil
		})
	}
	g.Go(func() error {
		defer close(rules)
		return parsers.Wait()
	})
	g.Go(func() error {
		return i.collect(gctx, rules, &st)
	})

	err := g.Wait()
	st.Lines = lines.Load()
	st.Invalid = invalid.Load()
	return st, err
}

func (i *ingester) collect(ctx context.Context, rules <-chan coupon.Rule, st *stats) error {
	var (
		filter   = bloom.NewWithEstimates(i.capacity, i.fpr)
		batch    = make([]coupon.Rule, 0, i.batchSize)
		deferred []coupon.Rule
		held     = make(map[string]struct{})
	)
	flush := func(rs []coupon.Rule) error {
		if len(rs) == 0 {
			return nil
		}
		n, err := i.importer.Import(ctx, rs)
		if err != nil {
			return errors.Wrap(err, "import batch")
		}
		st.Inserted += n
		i.lg.Debug("Imported batch", zap.Int("size", len(rs)), zap.Int64("inserted", n))
		return nil
	}

	for r := range rules {
		if !filter.TestAndAddString(r.Code) {
			batch = append(batch, r)
			if len(batch) >= i.batchSize {
				if err := flush(batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
			continue
		}
		if _, ok := held[r.Code]; ok {
			continue
		}
		held[r.Code] = struct{}{}
		deferred = append(deferred, r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := flush(batch); err != nil {
		return err
	}
	st.Deferred = int64(len(deferred))
	for start := 0; start < len(deferred); start += i.batchSize {
		end := min(start+i.batchSize, len(deferred))
		if err := flush(deferred[start:end]); err != nil {
			return err
		}
	}
	return nil
}

type fileStats struct {
	Lines   int64
	Invalid int64
}

// parseFile streams one gzip-compressed JSON-lines file, calling emit for
// every well-formed coupon. Malformed lines are logged and counted.
func parseFile(ctx context.Context, lg *zap.Logger, path string, emit func(coupon.Rule) error) (fileStats, error) {
	var fs fileStats

	f, err := os.Open(path)
	if err != nil {
		return fs, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fs, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return fs, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		fs.Lines++

		r, err := parseLine(line)
		if err != nil {
			fs.Invalid++
			lg.Warn("Skipping invalid coupon line",
				zap.String("path", path),
				zap.Int64("line", fs.Lines),
				zap.Error(err),
			)
			continue
		}
		if err := emit(r); err != nil {
			return fs, err
		}
	}
	if err := scanner.Err(); err != nil {
		return fs, errors.Wrap(err, "scan")
	}
	return fs, nil
}

func parseLine(line []byte) (coupon.Rule, error) {
	r, err := wire.DecodeRule(jx.DecodeBytes(line))
	if err != nil {
		return coupon.Rule{}, err
	}
	switch {
	case r.Code == "":
		return coupon.Rule{}, errors.New("missing code")
	case r.Value.IsNegative():
		return coupon.Rule{}, errors.New("negative value")
	case r.Type == coupon.TypeFixed && r.MaxDiscount.Valid:
		return coupon.Rule{}, errors.New("fixed coupon with maximum discount")
	}
	return r, nil
}
