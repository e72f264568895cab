package query

import "sort"

// Field is a predicate field name as written in query JSON.
type Field string

// FieldKind classifies how a predicate field is matched.
type FieldKind int

// Field kinds.
const (
	KindTerm FieldKind = iota + 1
	KindSet
	KindDate
	KindBBox
)

// Known predicate fields.
const (
	FieldTerm         Field = "term"
	FieldID           Field = "id"
	FieldGroup        Field = "group"
	FieldType         Field = "type"
	FieldTypeKeywords Field = "typekeywords"
	FieldOwner        Field = "owner"
	FieldTags         Field = "tags"
	FieldCategories   Field = "categories"
	FieldAccess       Field = "access"
	FieldOrgID        Field = "orgid"
	FieldTitle        Field = "title"
	FieldName         Field = "name"
	FieldUsername     Field = "username"
	FieldRole         Field = "role"
	FieldMemberType   Field = "memberType"
	FieldDiscussion   Field = "discussion"
	FieldChannel      Field = "channel"
	FieldStatus       Field = "status"
	FieldParentID     Field = "parentId"
	FieldCreated      Field = "created"
	FieldModified     Field = "modified"
	FieldLastLogin    Field = "lastlogin"
	FieldStartDate    Field = "startDate"
	FieldBBox         Field = "bbox"
)

var registry = map[Field]FieldKind{
	FieldTerm:         KindTerm,
	FieldID:           KindSet,
	FieldGroup:        KindSet,
	FieldType:         KindSet,
	FieldTypeKeywords: KindSet,
	FieldOwner:        KindSet,
	FieldTags:         KindSet,
	FieldCategories:   KindSet,
	FieldAccess:       KindSet,
	FieldOrgID:        KindSet,
	FieldTitle:        KindSet,
	FieldName:         KindSet,
	FieldUsername:     KindSet,
	FieldRole:         KindSet,
	FieldMemberType:   KindSet,
	FieldDiscussion:   KindSet,
	FieldChannel:      KindSet,
	FieldStatus:       KindSet,
	FieldParentID:     KindSet,
	FieldCreated:      KindDate,
	FieldModified:     KindDate,
	FieldLastLogin:    KindDate,
	FieldStartDate:    KindDate,
	FieldBBox:         KindBBox,
}

// Lookup returns the kind of a known field.
func Lookup(name string) (Field, FieldKind, bool) {
	f := Field(name)
	k, ok := registry[f]
	return f, k, ok
}

// Kind returns the field kind, or 0 for unknown fields.
func (f Field) Kind() FieldKind { return registry[f] }

func sortFields(fs []Field) {
	sort.Slice(fs, func(i, j int) bool { return fs[i] < fs[j] })
}
