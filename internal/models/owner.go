package models

import "time"

// OwnerKind classifies calendar owners.
type OwnerKind string

const (
	OwnerKindPerson   OwnerKind = "PERSON"
	OwnerKindGroup    OwnerKind = "GROUP"
	OwnerKindSection  OwnerKind = "SECTION"
	OwnerKindResource OwnerKind = "RESOURCE"
)

// Owner is anything that owns a calendar: people, groups, sections and
// bookable resources. An owner's calendar id equals the owner id.
type Owner struct {
	ID        string    `db:"id" json:"id"`
	Kind      OwnerKind `db:"kind" json:"kind"`
	Title     string    `db:"title" json:"title"`
	Timezone  string    `db:"timezone" json:"timezone"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OwnerRelation links an owner to a related owner, e.g. a student to a group
// by "membership".
type OwnerRelation struct {
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Kind      string    `db:"kind" json:"kind"`
	RelatedID string    `db:"related_id" json:"related_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RelationSource declares that timetables of related owners of Kind take part
// in the owner's composite timetable.
type RelationSource struct {
	OwnerID      string `db:"owner_id" json:"owner_id"`
	Kind         string `db:"kind" json:"kind"`
	UseComposite bool   `db:"use_composite" json:"use_composite"`
}
