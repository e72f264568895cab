package entity

import (
	"fmt"

	"github.com/kailas-cloud/hubsearch/internal/domain"
)

// Kind is the target entity of a query. It selects the backend collection,
// the compiled shape and the response normalizer.
type Kind string

// Supported entity kinds.
const (
	Item           Kind = "item"
	Group          Kind = "group"
	User           Kind = "user"
	GroupMember    Kind = "groupMember"
	DiscussionPost Kind = "discussionPost"
	Event          Kind = "event"
	Channel        Kind = "channel"
)

var all = []Kind{Item, Group, User, GroupMember, DiscussionPost, Event, Channel}

// All returns every supported kind in a stable order.
func All() []Kind {
	out := make([]Kind, len(all))
	copy(out, all)
	return out
}

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	for _, v := range all {
		if v == k {
			return true
		}
	}
	return false
}

// Parse validates a raw kind.
func Parse(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownEntityKind, s)
	}
	return k, nil
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }
