package retry

import "context"

// DoTyped is a type-safe generic wrapper around Executor.Do.
// It eliminates the need for type assertions on the return value.
//
// Usage:
//
//	resp, err := retry.DoTyped[*image.GenerateResponse](e, ctx, onProgress, func() (*image.GenerateResponse, error) {
//	    return provider.Generate(ctx, req)
//	})
func DoTyped[T any](e Executor, ctx context.Context, onProgress ProgressFunc, fn func() (T, error)) (T, error) {
	result, err := e.Do(ctx, onProgress, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
