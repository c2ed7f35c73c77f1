package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/cache"
	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/metrics"
)

// ErrValidation matches every ValidationError via errors.Is
var ErrValidation = errors.New("validation failed")

// ValidationError reports a malformed collection request. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ErrorKind maps an error to the label used by the error-count metric
func ErrorKind(err error) string {
	if errors.Is(err, ErrValidation) {
		return kube.KindValidation
	}
	return kube.ErrorKind(err)
}

// FetchFunc retrieves raw data for a namespace from an external source
type FetchFunc[Raw any] func(ctx context.Context, namespace string, params map[string]string) (Raw, error)

// TransformFunc converts raw data into domain records without doing I/O
type TransformFunc[Raw, R any] func(namespace string, raw Raw) (R, error)

// Stage wraps a fetch and transform pair with validation, cache-aside lookups and timing.
// A Stage is safe for concurrent use when its fetch, cache and sink are.
type Stage[Raw, R any] struct {
	name      string
	logger    *zap.Logger
	cache     *cache.Store
	sink      metrics.Sink
	fetch     FetchFunc[Raw]
	transform TransformFunc[Raw, R]
}

// NewStage creates a stage. name identifies the stage in cache keys, logs and metrics.
func NewStage[Raw, R any](name string, logger *zap.Logger, store *cache.Store, sink metrics.Sink, fetch FetchFunc[Raw], transform TransformFunc[Raw, R]) *Stage[Raw, R] {
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Stage[Raw, R]{
		name:      name,
		logger:    logger.With(zap.String("stage", name)),
		cache:     store,
		sink:      sink,
		fetch:     fetch,
		transform: transform,
	}
}

// Name returns the stage identity
func (s *Stage[Raw, R]) Name() string {
	return s.name
}

// Collect returns the records for namespace, from the cache when a fresh entry exists.
// Empty params are ignored when building the cache key. Errors are recorded and returned.
func (s *Stage[Raw, R]) Collect(ctx context.Context, namespace string, params map[string]string) (R, error) {
	var zero R

	if namespace == "" {
		return zero, &ValidationError{Field: "namespace", Reason: "cannot be empty"}
	}

	key := cache.Key(s.name, namespace, nonEmpty(params))
	if cached, ok := s.cache.Get(key); ok {
		if result, ok := cached.(R); ok {
			s.logger.Debug("Cache hit", zap.String("namespace", namespace), zap.String("key", key))
			return result, nil
		}
		s.cache.Invalidate(key)
	}

	start := time.Now()
	result, err := s.run(ctx, namespace, params)
	elapsed := time.Since(start)
	s.sink.ObserveDuration(namespace, s.name, elapsed)

	if err != nil {
		s.logger.Error("Collection failed",
			zap.String("namespace", namespace),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		s.sink.IncError(namespace, ErrorKind(err))
		return zero, err
	}

	s.cache.Set(key, result)
	s.logger.Debug("Collection completed",
		zap.String("namespace", namespace),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

func (s *Stage[Raw, R]) run(ctx context.Context, namespace string, params map[string]string) (R, error) {
	var zero R

	raw, err := s.fetch(ctx, namespace, params)
	if err != nil {
		return zero, fmt.Errorf("%s fetch: %w", s.name, err)
	}

	result, err := s.transform(namespace, raw)
	if err != nil {
		return zero, fmt.Errorf("%s transform: %w", s.name, err)
	}
	return result, nil
}

func nonEmpty(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
