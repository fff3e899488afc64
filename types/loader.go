package types

import "context"

// Loader is the contract between the wrapper and the operation it protects.
type Loader[A any, V any] interface {

	/*
		Load is called when the cache misses (or when caching is disabled).
		1. Wrapper derives the key → store has no live entry
		2. Wrapper calls Load(arg), possibly several times under retry
		3. Loader does the real work (DB query, API call, computation)
		4. Wrapper stores the result
		5. Wrapper returns the value
	*/
	Load(ctx context.Context, arg A) (V, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc[A any, V any] func(ctx context.Context, arg A) (V, error)

func (f LoaderFunc[A, V]) Load(ctx context.Context, arg A) (V, error) {
	return f(ctx, arg)
}
