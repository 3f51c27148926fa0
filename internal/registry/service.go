// Package registry implements the lost-and-found workflows: browsing with
// filters, item submission with category resolution, category moderation,
// hold toggling and owner-only deletion. Storage is reached only through
// the repository interfaces in repository.go.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"lostfound/internal/models"
)

// DefaultEmailDomain is the only domain accepted at signup unless
// configured otherwise.
const DefaultEmailDomain = "usls.edu.ph"

// Options configures a Service. Media and Audit may be nil.
type Options struct {
	Policy      SubmissionPolicy
	EmailDomain string
	Media       MediaStore
	Audit       Auditor
	Now         func() time.Time
}

// Service runs registry operations against the repositories. Reads go to
// the pool-bound repos; every write runs inside tx.
type Service struct {
	repos       Repos
	tx          Transactor
	media       MediaStore
	audit       Auditor
	policy      SubmissionPolicy
	emailDomain string
	now         func() time.Time
	validate    *validator.Validate
}

// New creates a Service.
func New(repos Repos, tx Transactor, opts Options) *Service {
	if opts.EmailDomain == "" {
		opts.EmailDomain = DefaultEmailDomain
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repos:       repos,
		tx:          tx,
		media:       opts.Media,
		audit:       opts.Audit,
		policy:      opts.Policy,
		emailDomain: opts.EmailDomain,
		now:         opts.Now,
		validate:    newValidator(opts.EmailDomain),
	}
}

// Policy returns the submission policy in effect.
func (s *Service) Policy() SubmissionPolicy {
	return s.policy
}

// EmailDomain returns the domain required at signup.
func (s *Service) EmailDomain() string {
	return s.emailDomain
}

// BrowseResult is a filtered, ordered item listing together with the
// echoed form and any field errors from the query.
type BrowseResult struct {
	Items  []models.Item
	Query  models.ItemQuery
	Form   FilterForm
	Errors FieldErrors
}

// Browse validates the listing parameters and returns the matching items.
// Invalid parameters are reported in Errors and the listing falls back to
// the default ordering with only the retrieved-visibility rule applied.
func (s *Service) Browse(ctx context.Context, values url.Values, viewer *uuid.UUID) (*BrowseResult, error) {
	q, form, fe := ParseQuery(values)

	if len(fe) == 0 && len(q.CategoryIDs) > 0 {
		if err := s.checkCategories(ctx, q.CategoryIDs, fe); err != nil {
			return nil, err
		}
		if len(fe) > 0 {
			q = fallbackQuery(form.IncludeRetrieved)
		}
	}

	q.ViewerID = viewer
	q.HeldFirst = viewer != nil && len(fe) == 0

	items, err := s.repos.Items.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("browse items: %w", err)
	}

	return &BrowseResult{Items: items, Query: q, Form: form, Errors: fe}, nil
}

// checkCategories reports unknown category ids as a field error.
func (s *Service) checkCategories(ctx context.Context, ids []uuid.UUID, fe FieldErrors) error {
	cats, err := s.repos.Categories.List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(cats))
	for _, c := range cats {
		known[c.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			fe.Add("categories", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", id))
		}
	}
	return nil
}

// Categories returns the approved categories ordered for display.
func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return s.repos.Categories.FlatTree(ctx)
}

// PendingCategories returns the pending category names with their staged
// item counts.
func (s *Service) PendingCategories(ctx context.Context) ([]models.PendingCategory, error) {
	return s.repos.Pending.List(ctx)
}

// Item returns a single item or ErrNotFound.
func (s *Service) Item(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.repos.Items.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// Profile returns the items a user uploaded and the items they hold.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (uploaded, held []models.Item, err error) {
	uploaded, err = s.repos.Items.ListByUploader(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list uploaded items: %w", err)
	}
	held, err = s.repos.Items.ListHeldBy(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list held items: %w", err)
	}
	return uploaded, held, nil
}

// MediaURL returns the public URL of a stored image key, or "" when media
// storage is not configured.
func (s *Service) MediaURL(key string) string {
	if s.media == nil || key == "" {
		return ""
	}
	return s.media.URL(key)
}

func (s *Service) logAudit(ctx context.Context, entityType string, entityID uuid.UUID, action string, actor *uuid.UUID, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, entityType, entityID, action, actor, detail)
}
