// Package hubsearch provides a Go client for searching a content hub through
// its legacy portal API and its OGC records API with one query model.
//
// A Query targets one entity kind and holds filters. Every filter must match
// and the predicates inside a filter are combined by the filter's operation.
// The client compiles the query for whichever backend serves the target kind
// and normalizes the response into Result pages.
//
// # Searching
//
//	client, _ := hubsearch.New(ctx,
//	    hubsearch.WithPortal("https://portal.example.com"),
//	    hubsearch.WithOGC("https://hub.example.com/api/search/v1", nil),
//	)
//	defer client.Close()
//
//	q := hubsearch.NewQuery(hubsearch.Item,
//	    hubsearch.NewFilter(hubsearch.SetPredicate(hubsearch.FieldType, hubsearch.Exactly("CSV"))),
//	)
//	page, _ := client.Search(ctx, q, hubsearch.SearchOptions{Num: 20})
//	for page != nil {
//	    // use page.Results
//	    page, _ = page.Next(ctx)
//	}
//
// # Catalogs
//
// A catalog bounds searches with one scope per entity kind and exposes named
// collections. Containment checks walk the catalog and its parents.
//
//	def, _ := hubsearch.ParseCatalog(raw)
//	site := client.Catalog(def, hubsearch.ParentEntity("initiative-id"))
//	items, _ := site.SearchScope(ctx, hubsearch.Item, hubsearch.Term("parks"), hubsearch.SearchOptions{})
//	res, _ := site.Contains(ctx, "item-id", hubsearch.ContainsOptions{})
package hubsearch
