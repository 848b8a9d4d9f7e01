package note

import (
	"time"

	"github.com/lib/pq"
)

// Categories a note may be filed under.
var Categories = []string{"General", "Work", "Personal", "Ideas", "Important"}

const DefaultCategory = "General"

// Note is owned by exactly one user. Screenshots only ever holds URLs that finished uploading,
// in display order.
type Note struct {
	ID          uint64         `gorm:"primaryKey" json:"id"`
	OwnerID     uint64         `gorm:"index;not null" json:"ownerId"`
	Title       string         `gorm:"type:text;not null" json:"title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Category    string         `gorm:"type:text;not null;default:'General'" json:"category"`
	Tags        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`
	Screenshots pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"screenshots"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"index;not null;default:now()" json:"updatedAt"`
}

// Filter narrows List. Empty fields do not filter.
type Filter struct {
	Search   string   // case-insensitive, over title, content and tags
	Category string   // exact; "All" means no filter
	Tags     []string // any-of
}

func validCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

func orEmpty(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}
