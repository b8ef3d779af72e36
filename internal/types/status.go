package types

// Status is a type for the lifecycle of a database resource. This is
// distinct from domain statuses (subscription, invoice) and only tracks
// whether a row should be included in queries or treated as deleted.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}
