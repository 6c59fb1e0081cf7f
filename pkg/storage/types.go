package storage

import (
	"errors"
	"time"

	"github.com/superjcast/showwatch/pkg/datetime"
)

var (
	// ErrEmbargoExists is returned when an embargo with the same title is already active.
	ErrEmbargoExists = errors.New("embargo already exists")
	// ErrEmbargoNotFound is returned when no active embargo has the requested title.
	ErrEmbargoNotFound = errors.New("embargo not found")
)

// Collection partitions shows. Name and date are unique within a collection.
type Collection string

const (
	// Scheduled shows of the primary promotion.
	CollectionSchedule Collection = "schedule"
	// Past shows of the primary promotion. Never purged.
	CollectionResult Collection = "result"
	// Shows of other promotions, added by hand.
	CollectionOther Collection = "other"
)

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case CollectionSchedule, CollectionResult, CollectionOther:
		return true
	}
	return false
}

// Show is one dated occurrence of an event.
type Show struct {
	ID         int64      `json:"id"`
	Collection Collection `json:"collection"`
	Name       string     `json:"name"`
	// DateKey is the second half of the identity. See DateKey.
	DateKey string `json:"date"`
	// Start is zero when the listing text could not be resolved.
	Start    time.Time    `json:"start,omitempty"`
	SourceTZ datetime.Tag `json:"source_tz"`
	RawWhen  string       `json:"raw_when,omitempty"`

	City  string `json:"city,omitempty"`
	Venue string `json:"venue,omitempty"`
	Thumb string `json:"thumb,omitempty"`
	Card  string `json:"card,omitempty"`

	Live bool `json:"live"`
	// Embargoed is set once the show has opened a spoiler embargo.
	Embargoed    bool `json:"embargoed"`
	SpoilerHours int  `json:"spoiler_hours"`
	New          bool `json:"new"`

	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Resolved reports whether the show has a usable start instant.
func (s Show) Resolved() bool { return !s.Start.IsZero() && s.SourceTZ != datetime.TagNone }

// Mode selects how an embargo is announced.
type Mode string

const (
	// ModePrimary embargoes follow live broadcasts of scheduled shows.
	ModePrimary Mode = "primary"
	// ModeSecondary embargoes follow shows of other promotions.
	ModeSecondary Mode = "secondary"
)

// Embargo is an active spoiler window.
type Embargo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	EndsAt    time.Time `json:"ends_at"`
	Thumb     string    `json:"thumb,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Episode is one item of the podcast feed.
type Episode struct {
	ID          int64     `json:"id"`
	Link        string    `json:"link"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Published   time.Time `json:"published"`
	Duration    string    `json:"duration,omitempty"`
	File        string    `json:"file,omitempty"`
	New         bool      `json:"new"`
	AddedAt     time.Time `json:"added_at"`
}

// Profile is a roster entry.
type Profile struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Link       string            `json:"link,omitempty"`
	Render     string            `json:"render,omitempty"`
	Bio        string            `json:"bio,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	New        bool              `json:"new"`
	Removed    bool              `json:"removed"`
	AddedAt    time.Time         `json:"added_at"`
}

// ChangeType describes what an upsert did.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeUpdated   ChangeType = "updated"
	ChangeUnchanged ChangeType = "unchanged"
	ChangeRemoved   ChangeType = "removed"
)

// Change captures a single change event for logging or printing.
type Change struct {
	OccurredAt time.Time
	Type       ChangeType
	// Kind is the table the change applies to: show, episode or profile.
	Kind string
	Key  string
}

// Stats summarizes the database.
type Stats struct {
	Shows          map[Collection]int
	NewShows       int
	Embargoes      int
	Episodes       int
	Profiles       int
	RemovedPending int
}
