package convert

import (
	"fmt"
	"golang.org/x/sync/singleflight"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Cache holds synthesized routines keyed by (source type, target)
//
// routines are created once and never evicted; concurrent first requests for the same key share
// a single resolution. Resolution failures are cached and returned for every later request.
//
// field targets (see NewFieldTarget) describing the same field and settings resolve to the same
// entries, so re-creating them does not grow the cache
type Cache struct {
	resolver StrategyResolver
	logger   *slog.Logger
	routines sync.Map
	targets  sync.Map
	flights  singleflight.Group
	count    atomic.Int64
}

type cacheKey struct {
	source reflect.Type
	target *Target
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%p|%p", k.target, k.source)
}

type cacheEntry struct {
	routine  Routine
	strategy Strategy
	err      error
}

var defaultCache = MustNewCache()

// Default returns the process-wide cache (using the built-in members)
func Default() *Cache {
	return defaultCache
}

// NewCache creates a new routine cache
//
// options can be any of the following types:
//
// * *Members - members used by the default resolver
//
// * StrategyResolver - resolver to use instead of the default
//
// * *slog.Logger - logger for resolution outcomes (the default discards)
func NewCache(options ...any) (*Cache, error) {
	result := &Cache{}
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case *Members:
				result.resolver = NewResolver(option)
			case StrategyResolver:
				result.resolver = option
			case *slog.Logger:
				result.logger = option
			default:
				return nil, fmt.Errorf("unknown option type: %T", o)
			}
		}
	}
	if result.resolver == nil {
		result.resolver = NewResolver(nil)
	}
	if result.logger == nil {
		result.logger = slog.New(discardHandler{})
	}
	return result, nil
}

// MustNewCache is the same as NewCache, except that it panics on error
func MustNewCache(options ...any) *Cache {
	c, err := NewCache(options...)
	if err != nil {
		panic(err)
	}
	return c
}

// Routine returns the routine for assigning values of the source type into target
func (c *Cache) Routine(source reflect.Type, target *Target) (Routine, error) {
	e := c.entry(source, target)
	return e.routine, e.err
}

// Strategy returns the strategy the routine for source and target was synthesized from
func (c *Cache) Strategy(source reflect.Type, target *Target) (Strategy, error) {
	e := c.entry(source, target)
	return e.strategy, e.err
}

// Assign converts raw and assigns it into the target field of holder
func (c *Cache) Assign(holder unsafe.Pointer, raw any, target *Target) error {
	routine, err := c.Routine(reflect.TypeOf(raw), target)
	if err != nil {
		return err
	}
	return routine(holder, raw)
}

// Len returns the number of cached keys (including failed resolutions)
func (c *Cache) Len() int {
	return int(c.count.Load())
}

func (c *Cache) entry(source reflect.Type, target *Target) *cacheEntry {
	target = c.canonical(target)
	key := cacheKey{source: source, target: target}
	if v, ok := c.routines.Load(key); ok {
		return v.(*cacheEntry)
	}
	v, _, _ := c.flights.Do(key.String(), func() (any, error) {
		if v, ok := c.routines.Load(key); ok {
			return v, nil
		}
		e := c.build(source, target)
		c.routines.Store(key, e)
		c.count.Add(1)
		return e, nil
	})
	return v.(*cacheEntry)
}

// canonical returns the first target seen with the same field descriptor
func (c *Cache) canonical(target *Target) *Target {
	if target == nil || target.descriptor == nil {
		return target
	}
	v, _ := c.targets.LoadOrStore(*target.descriptor, target)
	return v.(*Target)
}

func (c *Cache) build(source reflect.Type, target *Target) *cacheEntry {
	strategy, err := c.resolver.Resolve(source, target)
	if err == nil {
		var routine Routine
		if routine, err = Synthesize(strategy, target); err == nil {
			c.logger.Debug("routine synthesized",
				slog.String("field", target.Name()),
				slog.String("source", typeName(source)),
				slog.String("target", typeName(target.Type())),
				slog.String("strategy", strategy.Kind.String()))
			return &cacheEntry{routine: routine, strategy: strategy}
		}
	}
	field := ""
	if target != nil {
		field = target.Name()
	}
	c.logger.Warn("no routine for field",
		slog.String("field", field),
		slog.String("source", typeName(source)),
		slog.String("error", err.Error()))
	return &cacheEntry{err: err}
}
