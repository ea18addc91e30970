package repository

import (
	"context"
	"reflect"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// FindByID returns the entity of type T stored under id.
func FindByID[T any](ctx context.Context, r Repository, id graph.ID) (*T, bool, error) {
	v, ok, err := r.FindByID(ctx, reflect.TypeFor[T](), id)
	if err != nil || !ok {
		return nil, false, err
	}
	return v.(*T), true, nil
}

func FindAll[T any](ctx context.Context, r Repository) ([]*T, error) {
	return cast[T](r.FindAll(ctx, reflect.TypeFor[T]()))
}

func FindPage[T any](ctx context.Context, r Repository, page Page) ([]*T, error) {
	return cast[T](r.FindPage(ctx, reflect.TypeFor[T](), page))
}

func FindByProperty[T any](ctx context.Context, r Repository, key string, value any) (*T, bool, error) {
	v, ok, err := r.FindByProperty(ctx, reflect.TypeFor[T](), key, value)
	if err != nil || !ok {
		return nil, false, err
	}
	return v.(*T), true, nil
}

func FindByProperties[T any](ctx context.Context, r Repository, filter graph.Props) ([]*T, error) {
	return cast[T](r.FindByProperties(ctx, reflect.TypeFor[T](), filter))
}

func ExistsByProperty[T any](ctx context.Context, r Repository, key string, value any) (bool, error) {
	return r.ExistsByProperty(ctx, reflect.TypeFor[T](), key, value)
}

func CountVertices[T any](ctx context.Context, r Repository) (int64, error) {
	return r.CountVertices(ctx, reflect.TypeFor[T]())
}

func DeleteAll[T any](ctx context.Context, r Repository) error {
	return r.DeleteAll(ctx, reflect.TypeFor[T]())
}

func DeleteByProperty[T any](ctx context.Context, r Repository, key string, value any) error {
	return r.DeleteByProperty(ctx, reflect.TypeFor[T](), key, value)
}

// Traverse follows one hop from anchor and returns the neighbours as T.
func Traverse[T any](ctx context.Context, r Repository, anchor any, edgeLabel string, dir graph.Direction) ([]*T, error) {
	return cast[T](r.Traverse(ctx, anchor, edgeLabel, dir, reflect.TypeFor[T]()))
}

func TraverseOutgoing[T any](ctx context.Context, r Repository, id graph.ID, edgeLabel string) ([]*T, error) {
	return cast[T](r.TraverseOutgoing(ctx, reflect.TypeFor[T](), id, edgeLabel))
}

func TraverseIncoming[T any](ctx context.Context, r Repository, id graph.ID, edgeLabel string) ([]*T, error) {
	return cast[T](r.TraverseIncoming(ctx, reflect.TypeFor[T](), id, edgeLabel))
}

func TraverseBoth[T any](ctx context.Context, r Repository, id graph.ID, edgeLabel string) ([]*T, error) {
	return cast[T](r.TraverseBoth(ctx, reflect.TypeFor[T](), id, edgeLabel))
}

func TraverseWithDepth[T any](ctx context.Context, r Repository, id graph.ID, edgeLabel string, depth int) ([]*T, error) {
	return cast[T](r.TraverseWithDepth(ctx, reflect.TypeFor[T](), id, edgeLabel, depth))
}

func cast[T any](vs []any, err error) ([]*T, error) {
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.(*T))
	}
	return out, nil
}
