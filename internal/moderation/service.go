package moderation

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"imageguard/api/internal/config"
)

// Options toggles the optional detectors for one screening call. Face/age
// detection is never optional: it is the primary minor-safety signal and
// always runs.
type Options struct {
	CheckIdentity      bool
	CheckContentLabels bool
}

// Service runs the screening pipeline: normalize, rate-limited parallel
// detectors, decision policy. A Service with a nil provider fails every
// call closed.
type Service struct {
	provider Provider
	limiter  *Limiter
	norm     *normalizer
	cache    *redis.Client
	cfg      config.ModerationConfig
	log      zerolog.Logger
}

func NewService(provider Provider, cache *redis.Client, cfg config.ModerationConfig, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		limiter:  NewLimiter(cfg.RateCeilingPerMinute, cfg.MinCallDelay),
		norm:     newNormalizer(cfg.FetchTimeout),
		cache:    cache,
		cfg:      cfg,
		log:      log,
	}
}

// Enabled reports whether the vision provider is configured. When false,
// every screening entry point returns ServiceUnavailable without making
// any provider call.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// ScreenImage screens a single image and never returns an error: fetch,
// decode, and detector failures all fold into a non-approved Result.
func (s *Service) ScreenImage(ctx context.Context, in ImageInput, opts Options) Result {
	if !s.Enabled() {
		return unavailableResult()
	}
	return s.screenOne(ctx, in, opts)
}

// ScreenImageFromURL fetches a remote source image and screens it. A
// non-2xx response or network failure produces a rejection result, not an
// error.
func (s *Service) ScreenImageFromURL(ctx context.Context, url string, opts Options) Result {
	return s.ScreenImage(ctx, FromURL(url), opts)
}

// ScreenImages screens an ordered list with bounded concurrency and
// fail-fast short-circuiting: once any image in a joined batch is not
// approved, later batches are never started and the lowest failing index
// is reported. Zero-value inputs are skipped without provider calls.
func (s *Service) ScreenImages(ctx context.Context, inputs []ImageInput, opts Options) (BatchResult, error) {
	if len(inputs) > s.cfg.MaxBatchSize {
		return BatchResult{}, fmt.Errorf("%w: %d images, limit %d", ErrTooManyImages, len(inputs), s.cfg.MaxBatchSize)
	}

	results := make([]*Result, len(inputs))

	if !s.Enabled() {
		// fail the whole batch closed before doing any work
		res := unavailableResult()
		if len(results) > 0 {
			results[0] = &res
		}
		return BatchResult{Approved: false, FailedIndex: 0, Reasons: res.Reasons, Results: results}, nil
	}

	concurrency := s.cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	for start := 0; start < len(inputs); start += concurrency {
		end := start + concurrency
		if end > len(inputs) {
			end = len(inputs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			if inputs[i].IsZero() {
				continue
			}
			i := i
			g.Go(func() error {
				res := s.screenOne(gctx, inputs[i], opts)
				results[i] = &res
				return nil
			})
		}
		// screenOne never errors; failures land in the per-image results
		_ = g.Wait()

		for i := start; i < end; i++ {
			if results[i] != nil && !results[i].Approved {
				return BatchResult{
					Approved:    false,
					FailedIndex: i,
					Reasons:     results[i].Reasons,
					Results:     results,
				}, nil
			}
		}
	}

	return BatchResult{Approved: true, FailedIndex: -1, Results: results}, nil
}

func (s *Service) screenOne(ctx context.Context, in ImageInput, opts Options) Result {
	data, err := s.norm.Normalize(ctx, in)
	if err != nil {
		var fetchErr *FetchError
		switch {
		case errors.As(err, &fetchErr):
			return rejectionResult(fmt.Sprintf("could not fetch source image: %v", fetchErr))
		case errors.Is(err, ErrUnsupportedFormat):
			return rejectionResult("unsupported image format")
		default:
			return errorResult(err)
		}
	}

	key := s.cacheKey(data, opts)
	if cached, ok := s.cachedResult(ctx, key); ok {
		return cached
	}

	res := s.screen(ctx, data, opts)
	if !res.Errored() && !res.ServiceUnavailable {
		s.storeResult(ctx, key, res)
	}
	return res
}

// screen runs the enabled detectors concurrently, each behind one limiter
// acquire, then fuses the joined outputs.
func (s *Service) screen(ctx context.Context, data []byte, opts Options) Result {
	var sig signals

	g, gctx := errgroup.WithContext(ctx)

	if opts.CheckIdentity {
		g.Go(func() error {
			if err := s.limiter.Acquire(gctx); err != nil {
				return fmt.Errorf("identity check: %w", err)
			}
			matches, err := s.provider.RecognizeCelebrities(gctx, data)
			if err != nil {
				return err
			}
			sig.celebrities = matches
			return nil
		})
	}

	if opts.CheckContentLabels {
		g.Go(func() error {
			if err := s.limiter.Acquire(gctx); err != nil {
				return fmt.Errorf("label check: %w", err)
			}
			labels, err := s.provider.DetectLabels(gctx, data, s.cfg.LabelThreshold)
			if err != nil {
				return err
			}
			sig.labels = labels
			return nil
		})
	}

	g.Go(func() error {
		if err := s.limiter.Acquire(gctx); err != nil {
			return fmt.Errorf("face check: %w", err)
		}
		faces, err := s.provider.DetectFaces(gctx, data)
		if err != nil {
			return err
		}
		sig.faces = faces
		return nil
	})

	// detection failure is never treated as "no finding"
	if err := g.Wait(); err != nil {
		return errorResult(err)
	}

	return decide(sig, s.cfg)
}

func (s *Service) cacheKey(data []byte, opts Options) string {
	sum := sha256.Sum256(data)
	flags := 0
	if opts.CheckIdentity {
		flags |= 1
	}
	if opts.CheckContentLabels {
		flags |= 2
	}
	return fmt.Sprintf("moderation:result:%x:%d", sum, flags)
}

func (s *Service) cachedResult(ctx context.Context, key string) (Result, bool) {
	if s.cache == nil {
		return Result{}, false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return Result{}, false
	}
	return res, true
}

func (s *Service) storeResult(ctx context.Context, key string, res Result) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cfg.EvidenceTTL).Err(); err != nil {
		s.log.Debug().Err(err).Msg("cache screening result failed")
	}
}
