// Package explain reports which predicates of a query match a given result.
//
// Every predicate of every filter is evaluated independently with the shared
// evaluator in query/match, the same semantics the compilers are tested
// against, so an explanation agrees with what the backends return.
package explain

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/query/match"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	"github.com/kailas-cloud/hubsearch/internal/logger"
)

var timeNow = time.Now

// GroupFetcher loads the groups an item is shared to.
type GroupFetcher interface {
	ItemGroups(ctx context.Context, itemID string, cred *auth.Credential) ([]string, error)
}

// Explanation is the outcome for a whole query.
type Explanation struct {
	Matched bool                `json:"matched"`
	Reason  string              `json:"reason,omitempty"`
	Filters []FilterExplanation `json:"filters"`
}

// FilterExplanation is the outcome for one filter.
type FilterExplanation struct {
	Index      int                    `json:"index"`
	Operation  query.Operation        `json:"operation"`
	Matched    bool                   `json:"matched"`
	Predicates []PredicateExplanation `json:"predicates"`
}

// PredicateExplanation is the outcome for one predicate.
type PredicateExplanation struct {
	Index     int                 `json:"index"`
	Predicate query.Predicate     `json:"predicate"`
	Matched   bool                `json:"matched"`
	Fields    []match.FieldResult `json:"fields"`
}

// Explainer explains results. groups is optional.
type Explainer struct {
	groups GroupFetcher
}

// New creates an Explainer. With a nil groups fetcher, item results without
// group memberships are explained as they are.
func New(groups GroupFetcher) *Explainer {
	return &Explainer{groups: groups}
}

// Explain evaluates q against res.
func (e *Explainer) Explain(
	ctx context.Context, res result.Result, q query.Query, opts request.Options,
) (Explanation, error) {
	if err := q.Validate(); err != nil {
		return Explanation{}, fmt.Errorf("explain: %w", err)
	}
	now := opts.Now
	if now.IsZero() {
		now = timeNow()
	}

	if err := e.loadGroups(ctx, &res, q, opts.Credential); err != nil {
		return Explanation{}, err
	}

	rec := res.Record()
	out := Explanation{Matched: true, Filters: make([]FilterExplanation, 0, len(q.Filters))}
	if res.EntityKind != "" && res.EntityKind != q.TargetEntity {
		out.Matched = false
		out.Reason = fmt.Sprintf("result is a %s, query targets %s", res.EntityKind, q.TargetEntity)
	}

	for i, f := range q.Filters {
		fe := FilterExplanation{
			Index:      i,
			Operation:  f.Op(),
			Matched:    match.Filter(f, rec, now),
			Predicates: make([]PredicateExplanation, 0, len(f.Predicates)),
		}
		for j, p := range f.Predicates {
			pr := match.Predicate(p, rec, now)
			fe.Predicates = append(fe.Predicates, PredicateExplanation{
				Index:     j,
				Predicate: p,
				Matched:   pr.Matched,
				Fields:    pr.Fields,
			})
		}
		if !fe.Matched {
			out.Matched = false
		}
		out.Filters = append(out.Filters, fe)
	}

	logger.FromContext(ctx).Debug("explained result",
		zap.String("id", res.ID),
		zap.Bool("matched", out.Matched),
		zap.Int("filters", len(out.Filters)),
	)
	return out, nil
}

func (e *Explainer) loadGroups(ctx context.Context, res *result.Result, q query.Query, cred *auth.Credential) error {
	if e.groups == nil || len(res.Groups) > 0 || !q.HasField(query.FieldGroup) {
		return nil
	}
	if res.EntityKind != entity.Item && res.EntityKind != "" {
		return nil
	}
	ids, err := e.groups.ItemGroups(ctx, res.ID, cred)
	if err != nil {
		return fmt.Errorf("explain: load groups for %s: %w", res.ID, err)
	}
	res.Groups = slices.Clone(ids)
	return nil
}
