package storetesting

import (
	"context"
	"strconv"
	"testing"
)

// RunStoreBenchmarks runs all benchmarks for a store.IBackend implementation.
func RunStoreBenchmarks(b *testing.B, name string, factory BackendFactory) {
	b.Run(name+"/Insert", func(b *testing.B) {
		benchmarkInsert(b, factory)
	})

	b.Run(name+"/Update", func(b *testing.B) {
		benchmarkUpdate(b, factory)
	})

	b.Run(name+"/FindOne", func(b *testing.B) {
		benchmarkFindOne(b, factory)
	})
}

func benchmarkInsert(b *testing.B, factory BackendFactory) {
	_, coll := open(b, factory, "bench")
	ctx := context.Background()
	value := sampleValue()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := coll.InsertOne(ctx, strconv.Itoa(i), value); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkUpdate(b *testing.B, factory BackendFactory) {
	_, coll := open(b, factory, "bench")
	ctx := context.Background()
	if err := coll.InsertOne(ctx, "key", 0.0); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := coll.UpdateOne(ctx, "key", float64(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkFindOne(b *testing.B, factory BackendFactory) {
	_, coll := open(b, factory, "bench")
	ctx := context.Background()
	if err := coll.InsertOne(ctx, "key", sampleValue()); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := coll.FindOne(ctx, "key"); err != nil {
			b.Fatal(err)
		}
	}
}
