package registry

import (
	"context"

	"github.com/google/uuid"

	"lostfound/internal/models"
)

// ItemRepository persists found items and their holders. Find methods
// return (nil, nil) when the row does not exist.
type ItemRepository interface {
	Search(ctx context.Context, q models.ItemQuery) ([]models.Item, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	// LockByID loads the item and holds a write lock on its row until the
	// surrounding transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.ItemStatus, retrievedBy *uuid.UUID) error
	ToggleHold(ctx context.Context, itemID, userID uuid.UUID) (bool, error)
	AssignPending(ctx context.Context, pendingName string, categoryID uuid.UUID) (int64, error)
	ClearPending(ctx context.Context, pendingName string) (int64, error)
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int, error)
	ListByUploader(ctx context.Context, userID uuid.UUID) ([]models.Item, error)
	ListHeldBy(ctx context.Context, userID uuid.UUID) ([]models.Item, error)
}

// CategoryRepository persists the approved category taxonomy.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	FlatTree(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	// FindByName matches names case-insensitively.
	FindByName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	// GetOrCreate returns the category whose name matches case-insensitively,
	// creating it with the given spelling when none exists.
	GetOrCreate(ctx context.Context, name string) (*models.Category, error)
	CountChildren(ctx context.Context, id uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PendingCategoryRepository persists user-suggested category names.
type PendingCategoryRepository interface {
	List(ctx context.Context) ([]models.PendingCategory, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PendingCategory, error)
	// LockByID loads the row and holds a write lock on it until the
	// surrounding transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*models.PendingCategory, error)
	// GetOrCreate matches names case-insensitively.
	GetOrCreate(ctx context.Context, name string) (*models.PendingCategory, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository persists accounts.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, username, email, password string, role models.Role) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
}

// Repos bundles the repositories bound to one storage handle: either the
// connection pool or a single transaction.
type Repos struct {
	Items      ItemRepository
	Categories CategoryRepository
	Pending    PendingCategoryRepository
	Users      UserRepository
}

// Transactor runs fn with repositories bound to one transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(Repos) error) error
}

// MediaStore keeps uploaded image files outside the database.
type MediaStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Auditor records moderation and deletion events. Implementations are
// best-effort and never fail the calling operation.
type Auditor interface {
	Log(ctx context.Context, entityType string, entityID uuid.UUID, action string, actorID *uuid.UUID, detail string)
}
