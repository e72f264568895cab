// Package exprtest holds a shared record corpus and query set for checking
// compiled backend requests against match.Query.
package exprtest

import (
	"time"

	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/query/match"
)

// Now is the clock relative dates resolve against.
var Now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

var (
	portland = query.BBox{MinLon: -122.8, MinLat: 45.4, MaxLon: -122.5, MaxLat: 45.6}
	seattle  = query.BBox{MinLon: -122.5, MinLat: 47.4, MaxLon: -122.2, MaxLat: 47.8}
)

func record(owner string, groups, tags []string, text string, created time.Time, ext *query.BBox) match.Record {
	r := match.Record{
		Values: map[query.Field][]string{
			query.FieldOwner: {owner},
			query.FieldGroup: groups,
			query.FieldTags:  tags,
		},
		Text:   []string{text},
		Dates:  map[query.Field]time.Time{},
		Extent: ext,
	}
	if !created.IsZero() {
		r.Dates[query.FieldCreated] = created
	}
	return r
}

// Records returns the corpus keyed by a short description.
func Records() map[string]match.Record {
	pdx, sea := portland, seattle
	return map[string]match.Record{
		"both-oak":  record("casey", []string{"G1", "G2"}, []string{"trees"}, "Oak canopy survey", Now.AddDate(0, 0, -3), &pdx),
		"g1-oak":    record("robin", []string{"G1"}, []string{"Trees", "parks"}, "Oak inventory", Now.AddDate(-1, 0, 0), nil),
		"both-elm":  record("Casey", []string{"g1", "G2"}, nil, "Elm street", time.Time{}, nil),
		"hydrants":  record("sam", nil, []string{"water"}, "Hydrants", Now.AddDate(0, -2, 0), &pdx),
		"sea-parks": record("sam", []string{"G3"}, []string{"parks"}, "Seattle parks canopy", Now.AddDate(0, 0, -1), &sea),
	}
}

// Queries returns the query set keyed by name. Some shapes cannot be carried
// by every backend; callers list the names they expect to be rejected.
func Queries() map[string]query.Query {
	g := func(v ...string) query.Predicate { return query.SetPredicate(query.FieldGroup, query.OneOf(v...)) }
	tags := func(m query.MatchOptions) query.Predicate { return query.SetPredicate(query.FieldTags, m) }
	owner := func(v string) query.Predicate { return query.SetPredicate(query.FieldOwner, query.Exactly(v)) }
	box := func(b query.BBox) query.Predicate { return query.Predicate{}.WithBBox(b) }
	term := query.TermPredicate

	return map[string]query.Query{
		"empty": query.New(entity.Item),
		"g1 and g2 and oak": query.New(entity.Item,
			query.NewFilter(g("G1")),
			query.NewFilter(g("G2")),
		).Append(query.NewFilter(term("Oak"))),
		"or of groups":      query.New(entity.Item, query.AnyOf(g("G2"), tags(query.Exactly("water")))),
		"mixed case values": query.New(entity.Item, query.NewFilter(owner("CASEY"))),
		"all and not":       query.New(entity.Item, query.NewFilter(tags(query.MatchOptions{All: []string{"trees"}, Not: []string{"parks"}}))),
		"not only":          query.New(entity.Item, query.NewFilter(tags(query.MatchOptions{Not: []string{"trees", "water"}}))),
		"last week":         query.New(entity.Item, query.NewFilter(query.Predicate{}.WithDate(query.FieldCreated, query.Last(1, query.UnitWeeks)))),
		"created since": query.New(entity.Item, query.NewFilter(query.Predicate{}.WithDate(query.FieldCreated,
			query.Between(Now.AddDate(0, -3, 0), time.Time{})))),
		"bbox":              query.New(entity.Item, query.NewFilter(box(portland))),
		"same bbox twice":   query.New(entity.Item, query.NewFilter(box(portland)), query.NewFilter(box(portland).WithTerm("oak"))),
		"unsatisfiable":     query.New(entity.Item, query.NewFilter(g("G1")), query.Filter{}),
		"multi field pred":  query.New(entity.Item, query.NewFilter(g("G1").WithTerm("oak").WithSet(query.FieldTags, query.Exactly("parks")))),
		"terms anded":       query.New(entity.Item, query.NewFilter(term("canopy")), query.NewFilter(term("oak survey"))),
		"term or group":     query.New(entity.Item, query.AnyOf(term("oak"), g("G1"))),
		"text in or":        query.New(entity.Item, query.AnyOf(term("elm"), g("G1").WithTerm("hydrants"))),
		"phrase in or":      query.New(entity.Item, query.AnyOf(term("canopy survey"), tags(query.Exactly("water")))),
		"term and group or": query.New(entity.Item, query.AnyOf(g("G1").WithTerm("oak"), g("G2"))),
		"bbox or owner":     query.New(entity.Item, query.AnyOf(box(portland), owner("casey"))),
		"disjoint bboxes":   query.New(entity.Item, query.NewFilter(box(portland)), query.NewFilter(box(seattle))),
	}
}
