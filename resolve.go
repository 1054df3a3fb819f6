package services

import (
	"context"
	"reflect"
)

// Resolve looks up name and asserts the instance to T. Domain facades use it
// to expose a typed accessor for one service.
func Resolve[T any](ctx context.Context, r *Registry, name string) (T, error) {
	var zero T
	svc, err := r.Get(ctx, name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Name:     name,
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Got:      reflect.TypeOf(svc).String(),
		}
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](ctx context.Context, r *Registry, name string) T {
	v, err := Resolve[T](ctx, r, name)
	if err != nil {
		panic(err)
	}
	return v
}
