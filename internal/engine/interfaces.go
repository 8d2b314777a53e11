package engine

import (
	"github.com/dcreum/dcrflow/internal/domain"
)

// BookmarkRepo defines the interface for the locally persisted recent and
// relevant workflow lists, matching repository.BookmarkRepository.
type BookmarkRepo interface {
	TouchRecent(workflowID uint64, name string) error
	ListRecent(limit int) ([]*domain.Bookmark, error)
	MarkRelevant(workflowID uint64, name string) error
	UnmarkRelevant(workflowID uint64) error
	ListRelevant() ([]*domain.Bookmark, error)
}

// UserRepo defines the interface for API user persistence.
type UserRepo interface {
	Save(u *domain.User) (int64, error)
	FindByUsername(username string) (*domain.User, error)
	FindAll() ([]*domain.User, error)
}
