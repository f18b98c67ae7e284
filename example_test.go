package geodex_test

import (
	"context"
	"fmt"

	"github.com/hupe1980/geodex"
	"github.com/hupe1980/geodex/geo"
	"github.com/hupe1980/geodex/index"
	"github.com/hupe1980/geodex/model"
	"github.com/hupe1980/geodex/store"
)

func Example() {
	ctx := context.Background()

	entries := store.NewMemoryStore()
	_ = entries.Put(ctx, &model.EntryRecord{
		ID:          "farm-1",
		Version:     1,
		Title:       "Organic Farm Shop",
		Description: "Seasonal vegetables straight from the field",
		Tags:        []string{"organic", "csa"},
		Category:    model.CategoryCommercial,
		Position:    geo.Point{Lat: 48.137, Lng: 11.575},
	})

	eng, err := geodex.New(entries, geodex.WithBatchSize(1), geodex.WithCommitInterval(0))
	if err != nil {
		panic(err)
	}
	defer eng.Close()

	// Bring the index in line with the store.
	if _, err := eng.Reconcile(ctx); err != nil {
		panic(err)
	}

	page, err := eng.Search(ctx, index.Query{
		Text:  "organic vegetables",
		Limit: 10,
	})
	if err != nil {
		panic(err)
	}

	for _, hit := range page.Hits {
		fmt.Println(hit.ID)
	}
	// Output:
	// farm-1
}
