package note

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists notes. Every read and write is scoped to the owner.
type Store interface {
	Create(ctx context.Context, n *Note) error
	Get(ctx context.Context, owner, id uint64) (*Note, error)
	List(ctx context.Context, owner uint64, f Filter) ([]Note, error)
	// Replace overwrites the mutable fields of the note identified by (n.ID, n.OwnerID).
	Replace(ctx context.Context, n *Note) error
	// Delete removes the note and returns it as it was.
	Delete(ctx context.Context, owner, id uint64) (*Note, error)
}

// FreshReader is implemented by stores that cache reads. GetFresh always reads the
// underlying data.
type FreshReader interface {
	GetFresh(ctx context.Context, owner, id uint64) (*Note, error)
}

type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) Create(ctx context.Context, n *Note) error {
	return s.DB.WithContext(ctx).Create(n).Error
}

func (s *GormStore) Get(ctx context.Context, owner, id uint64) (*Note, error) {
	var n Note
	if err := s.DB.WithContext(ctx).Where("id=? AND owner_id=?", id, owner).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *GormStore) List(ctx context.Context, owner uint64, f Filter) ([]Note, error) {
	q := s.DB.WithContext(ctx).Model(&Note{}).Where("owner_id = ?", owner)

	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + escapeLike(search) + "%"
		q = q.Where("(title ILIKE ? OR content ILIKE ? OR array_to_string(tags, ' ') ILIKE ?)", like, like, like)
	}
	if c := strings.TrimSpace(f.Category); c != "" && c != "All" {
		q = q.Where("category = ?", c)
	}
	if len(f.Tags) > 0 {
		q = q.Where("tags && ?", pq.StringArray(f.Tags))
	}

	rows := []Note{}
	if err := q.Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) Replace(ctx context.Context, n *Note) error {
	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&Note{}).
		Where("id=? AND owner_id=?", n.ID, n.OwnerID).
		Updates(map[string]any{
			"title":       n.Title,
			"content":     n.Content,
			"category":    n.Category,
			"tags":        orEmpty(n.Tags),
			"screenshots": orEmpty(n.Screenshots),
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	n.UpdatedAt = now
	return nil
}

func (s *GormStore) Delete(ctx context.Context, owner, id uint64) (*Note, error) {
	var n Note
	res := s.DB.WithContext(ctx).Clauses(clause.Returning{}).
		Where("id=? AND owner_id=?", id, owner).
		Delete(&n)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
