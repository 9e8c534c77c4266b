package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/placecut/internal/ports"
	"github.com/forPelevin/placecut/internal/types"
)

const (
	DefaultConcurrency    = 2
	MaxConcurrency        = 5
	DefaultRequestTimeout = 10 * time.Second
	DefaultMinQueryLen    = 3
)

type Config struct {
	// Concurrency caps outstanding provider requests. Public geocoders
	// throttle or ban clients that exceed their usage policy, so keep it small.
	Concurrency    int
	RequestTimeout time.Duration
	// MinQueryLen is exclusive: shorter candidates are never sent.
	MinQueryLen int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Concurrency > MaxConcurrency {
		c.Concurrency = MaxConcurrency
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MinQueryLen <= 0 {
		c.MinQueryLen = DefaultMinQueryLen
	}
	return c
}

type Resolver struct {
	geo    ports.Geocoder
	cfg    Config
	logger *slog.Logger
}

type Stats struct {
	Candidates int
	Resolved   int
	Failed     int
	Empty      int
	Duplicates int
}

func NewResolver(geo ports.Geocoder, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{geo: geo, cfg: cfg.withDefaults(), logger: logger}
}

type outcome struct {
	loc types.GeocodedLocation
	ok  bool
	err error
}

// Resolve looks up every candidate and returns the first match of each,
// deduplicated by address in completion order. Lookup failures drop the
// candidate; only cancellation of ctx is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, cands []types.Candidate) ([]types.GeocodedLocation, Stats, error) {
	stats := Stats{Candidates: len(cands)}
	outcomes := make(chan outcome)

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	go func() {
		defer close(outcomes)
		for _, c := range cands {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				loc, ok, err := r.lookup(ctx, c)
				select {
				case outcomes <- outcome{loc: loc, ok: ok, err: err}:
				case <-ctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	var out []types.GeocodedLocation
	seen := make(map[string]struct{})
	for o := range outcomes {
		switch {
		case o.err != nil:
			stats.Failed++
		case !o.ok:
			stats.Empty++
		default:
			if _, dup := seen[o.loc.Address]; dup {
				stats.Duplicates++
				continue
			}
			seen[o.loc.Address] = struct{}{}
			out = append(out, o.loc)
			stats.Resolved++
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

func (r *Resolver) lookup(ctx context.Context, c types.Candidate) (loc types.GeocodedLocation, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("geocode panicked, candidate dropped",
				slog.String("candidate", c.Text),
				slog.Any("panic", p),
			)
			loc, ok, err = types.GeocodedLocation{}, false, fmt.Errorf("geocode panic for %q: %v", c.Text, p)
		}
	}()

	if utf8.RuneCountInString(c.Text) <= r.cfg.MinQueryLen {
		return types.GeocodedLocation{}, false, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	matches, err := r.geo.Search(reqCtx, c.Text)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			r.logger.Warn("geocode timed out, candidate dropped",
				slog.String("candidate", c.Text),
				slog.Duration("timeout", r.cfg.RequestTimeout),
			)
		} else {
			r.logger.Warn("geocode failed, candidate dropped",
				slog.String("candidate", c.Text),
				slog.String("error", err.Error()),
			)
		}
		return types.GeocodedLocation{}, false, err
	}
	if len(matches) == 0 || matches[0].DisplayName == "" {
		r.logger.Debug("geocode returned no matches", slog.String("candidate", c.Text))
		return types.GeocodedLocation{}, false, nil
	}

	top := matches[0]
	return types.GeocodedLocation{
		Name:      c.Text,
		Address:   top.DisplayName,
		Latitude:  top.Lat,
		Longitude: top.Lon,
	}, true, nil
}
