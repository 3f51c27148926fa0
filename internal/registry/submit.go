package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lostfound/internal/imaging"
	"lostfound/internal/metrics"
	"lostfound/internal/models"
	"lostfound/internal/slug"
)

// ImageUpload is a photo attached to a submission.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// SubmitInput holds the raw fields of the upload form.
type SubmitInput struct {
	Name          string `form:"name" validate:"required,max=100"`
	CategoryName  string `form:"category_name" validate:"required,max=100"`
	Description   string `form:"description" validate:"max=5000"`
	FoundLocation string `form:"found_location" validate:"required,max=100"`
	FoundDate     string `form:"found_date" validate:"required,datetime=2006-01-02"`
	Status        string `form:"status"`

	Image *ImageUpload `form:"-" validate:"-"`
}

func (in *SubmitInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.CategoryName = strings.TrimSpace(in.CategoryName)
	in.Description = strings.TrimSpace(in.Description)
	in.FoundLocation = strings.TrimSpace(in.FoundLocation)
	in.FoundDate = strings.TrimSpace(in.FoundDate)
	in.Status = strings.TrimSpace(in.Status)
}

// Submit validates an upload and stores the new item. The category name
// attaches to an approved category when one matches case-insensitively;
// otherwise it is staged as a pending category. Validation failures return
// a *ValidationError and leave storage untouched.
func (s *Service) Submit(ctx context.Context, in SubmitInput, uploader Actor) (*models.Item, error) {
	in.normalize()

	fe := s.validateStruct(&in)
	if s.policy.RequireDescription && in.Description == "" {
		fe.Add("description", "This field is required.")
	}

	var foundDate time.Time
	if _, bad := fe["found_date"]; !bad {
		foundDate, _ = time.Parse(dateLayout, in.FoundDate)
		today := s.now()
		today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		if foundDate.After(today) {
			fe.Add("found_date", "Date found cannot be in the future.")
		}
	}

	status, msg := s.resolveStatus(in.Status, uploader)
	if msg != "" {
		fe.Add("status", msg)
	}

	var processed *imaging.Processed
	switch {
	case in.Image == nil || len(in.Image.Data) == 0:
		if s.policy.RequireImage {
			fe.Add("image", "This field is required.")
		}
	case s.media == nil:
		fe.Add("image", "Photo uploads are not available right now.")
	default:
		p, err := imaging.Process(in.Image.Data)
		if err != nil {
			fe.Add("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
		} else {
			processed = p
		}
	}

	if err := fe.Err(); err != nil {
		return nil, err
	}

	item := &models.Item{
		Name:          in.Name,
		Description:   in.Description,
		FoundLocation: in.FoundLocation,
		FoundDate:     foundDate,
		PubDate:       s.now(),
		Status:        status,
		UploadedBy:    &uploader.ID,
	}

	var stored []string
	if processed != nil {
		keys, err := s.storeImage(ctx, in.Name, processed)
		if err != nil {
			return nil, err
		}
		stored = keys
		item.ImageKey = &keys[0]
		item.ThumbKey = &keys[1]
	}

	var created *models.Item
	var pending bool
	err := s.tx.InTx(ctx, func(r Repos) error {
		if err := resolveCategory(ctx, r, item, in.CategoryName); err != nil {
			return err
		}
		pending = item.PendingCategoryName != nil

		var err error
		created, err = r.Items.Create(ctx, item)
		return err
	})
	if err != nil {
		s.removeImages(ctx, stored...)
		return nil, fmt.Errorf("submit item: %w", err)
	}

	state := "approved"
	if pending {
		state = "pending"
	}
	metrics.ItemsSubmitted.WithLabelValues(state).Inc()
	slog.Info("item submitted", "item_id", created.ID, "uploader", uploader.ID, "category_state", state)

	return created, nil
}

// resolveStatus applies the role-dependent status rules to the raw input.
func (s *Service) resolveStatus(raw string, uploader Actor) (models.ItemStatus, string) {
	choices := StatusChoices(uploader.Role, s.policy)
	if len(choices) == 0 || raw == "" {
		return models.DefaultStatus, ""
	}
	status := models.ItemStatus(raw)
	if !statusAllowed(status, choices) {
		return "", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", raw)
	}
	return status, ""
}

// resolveCategory attaches an approved category matching name, or stages a
// pending category and records its name on the item.
func resolveCategory(ctx context.Context, r Repos, item *models.Item, name string) error {
	cat, err := r.Categories.FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}
	if cat != nil {
		item.CategoryID = &cat.ID
		item.CategoryName = cat.Name
		item.PendingCategoryName = nil
		return nil
	}

	p, err := r.Pending.GetOrCreate(ctx, name)
	if err != nil {
		return fmt.Errorf("get or create pending category: %w", err)
	}

	// GetOrCreate may have waited on an approval of the same name. Once that
	// commits the category exists and the pending row must not come back.
	cat, err = r.Categories.FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}
	if cat != nil {
		if err := r.Pending.Delete(ctx, p.ID); err != nil {
			return err
		}
		item.CategoryID = &cat.ID
		item.CategoryName = cat.Name
		item.PendingCategoryName = nil
		return nil
	}

	item.CategoryID = nil
	item.PendingCategoryName = &p.Name
	return nil
}

// storeImage uploads the processed photo and thumbnail and returns their
// keys (full, thumb).
func (s *Service) storeImage(ctx context.Context, itemName string, p *imaging.Processed) ([]string, error) {
	now := s.now()
	base := fmt.Sprintf("items/%d/%02d/%s", now.Year(), now.Month(), uuid.NewString())
	if sl := slug.Generate(itemName); sl != "" {
		base += "-" + slug.Truncate(sl, 40)
	}
	full := base + p.Ext
	thumb := base + "_thumb" + p.Ext

	if err := s.media.Put(ctx, full, p.ContentType, p.Data); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	if err := s.media.Put(ctx, thumb, p.ContentType, p.Thumb); err != nil {
		s.removeImages(ctx, full)
		return nil, fmt.Errorf("store thumbnail: %w", err)
	}
	return []string{full, thumb}, nil
}

// removeImages deletes stored objects, logging failures.
func (s *Service) removeImages(ctx context.Context, keys ...string) {
	if s.media == nil {
		return
	}
	for _, k := range keys {
		if err := s.media.Delete(ctx, k); err != nil {
			slog.Warn("image delete failed", "key", k, "error", err)
		}
	}
}

// IsValidation reports whether err carries field-level messages.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
