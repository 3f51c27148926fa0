package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"lostfound/internal/models"
)

// ItemStore manages found items and their holders.
type ItemStore struct {
	db DBTX
}

// NewItemStore returns a new ItemStore.
func NewItemStore(db DBTX) *ItemStore {
	return &ItemStore{db: db}
}

// itemSelect lists the item columns plus the joined display names. The
// held flag and holder count come from subqueries so joining never
// multiplies rows.
const itemSelect = `
	SELECT i.id, i.name, i.category_id, i.pending_category_name, i.description,
	       i.image_key, i.thumb_key, i.found_location, i.found_date, i.pub_date,
	       i.uploaded_by, i.status, i.retrieved_by,
	       COALESCE(c.name, '') AS category_name,
	       COALESCE(u.username, '') AS uploader_name,
	       %s AS held_by_viewer,
	       (SELECT COUNT(*) FROM item_holds hc WHERE hc.item_id = i.id) AS holder_count
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id
	LEFT JOIN users u ON u.id = i.uploaded_by`

const itemReturning = `id, name, category_id, pending_category_name, description,
	image_key, thumb_key, found_location, found_date, pub_date,
	uploaded_by, status, retrieved_by`

func scanItem(row scanner) (*models.Item, error) {
	var it models.Item
	err := row.Scan(
		&it.ID, &it.Name, &it.CategoryID, &it.PendingCategoryName, &it.Description,
		&it.ImageKey, &it.ThumbKey, &it.FoundLocation, &it.FoundDate, &it.PubDate,
		&it.UploadedBy, &it.Status, &it.RetrievedBy,
		&it.CategoryName, &it.UploaderName, &it.HeldByViewer, &it.HolderCount,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// sqlArgs accumulates positional parameters while a query is built.
type sqlArgs []any

func (a *sqlArgs) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

// heldExpr returns the held_by_viewer expression for viewer.
func heldExpr(viewer *uuid.UUID, args *sqlArgs) string {
	if viewer == nil {
		return "FALSE"
	}
	return "EXISTS (SELECT 1 FROM item_holds h WHERE h.item_id = i.id AND h.user_id = " + args.add(*viewer) + ")"
}

// sortColumns maps sort fields to SQL expressions.
var sortColumns = map[string]string{
	"found_date": "i.found_date",
	"pub_date":   "i.pub_date",
	"name":       "lower(i.name)",
	"status":     "CASE i.status WHEN 'not_at_repository' THEN 0 WHEN 'at_repository' THEN 1 ELSE 2 END",
}

// escapeLike escapes LIKE metacharacters so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildSearch turns a validated query into SQL and its arguments.
func buildSearch(q models.ItemQuery) (string, []any) {
	var args sqlArgs
	held := heldExpr(q.ViewerID, &args)

	var where []string
	if !q.IncludeRetrieved {
		where = append(where, "i.status <> 'retrieved'")
	}
	if q.Text != "" {
		p := args.add("%" + escapeLike(q.Text) + "%")
		where = append(where, "(i.name ILIKE "+p+" OR i.found_location ILIKE "+p+" OR i.pending_category_name ILIKE "+p+")")
	}
	if len(q.CategoryIDs) > 0 {
		ids := make([]string, len(q.CategoryIDs))
		for i, id := range q.CategoryIDs {
			ids[i] = id.String()
		}
		where = append(where, "i.category_id = ANY("+args.add(ids)+"::uuid[])")
	}
	if q.FoundDate != nil {
		where = append(where, "i.found_date = "+args.add(q.FoundDate.Format("2006-01-02"))+"::date")
	}

	var b strings.Builder
	fmt.Fprintf(&b, itemSelect, held)
	if len(where) > 0 {
		b.WriteString("\n\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	sort := q.Sort
	if !sort.Valid() {
		sort = models.DefaultSort
	}
	dir := "ASC"
	if sort.Descending() {
		dir = "DESC"
	}

	var order []string
	if q.HeldFirst && q.ViewerID != nil {
		order = append(order, "held_by_viewer DESC")
	}
	order = append(order, sortColumns[sort.Field()]+" "+dir, "i.id")
	b.WriteString("\n\tORDER BY ")
	b.WriteString(strings.Join(order, ", "))

	return b.String(), args
}

// Search returns the items matching q in the requested order.
func (s *ItemStore) Search(ctx context.Context, q models.ItemQuery) ([]models.Item, error) {
	query, args := buildSearch(q)
	return s.list(ctx, query, args...)
}

func (s *ItemStore) list(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	seen := make(map[uuid.UUID]bool)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		items = append(items, *it)
	}
	return items, rows.Err()
}

// FindByID retrieves an item by ID. Returns nil if not found.
func (s *ItemStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var args sqlArgs
	query := fmt.Sprintf(itemSelect, "FALSE") + "\n\tWHERE i.id = " + args.add(id)
	it, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find item by id: %w", err)
	}
	return it, nil
}

// LockByID is FindByID with a lock on the item row held until the
// transaction ends. Status changes and deletes of the same item wait.
func (s *ItemStore) LockByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var args sqlArgs
	query := fmt.Sprintf(itemSelect, "FALSE") + "\n\tWHERE i.id = " + args.add(id) + "\n\tFOR UPDATE OF i"
	it, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock item: %w", err)
	}
	return it, nil
}

// Create inserts an item. pub_date defaults to the database clock when the
// item carries none.
func (s *ItemStore) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	var pubDate any
	if !item.PubDate.IsZero() {
		pubDate = item.PubDate
	}
	status := item.Status
	if status == "" {
		status = models.DefaultStatus
	}

	var it models.Item
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO items (name, category_id, pending_category_name, description,
		                   image_key, thumb_key, found_location, found_date, pub_date,
		                   uploaded_by, status, retrieved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, COALESCE($9, NOW()), $10, $11, $12)
		RETURNING `+itemReturning,
		item.Name, item.CategoryID, item.PendingCategoryName, item.Description,
		item.ImageKey, item.ThumbKey, item.FoundLocation, item.FoundDate.Format("2006-01-02"), pubDate,
		item.UploadedBy, status, item.RetrievedBy,
	).Scan(
		&it.ID, &it.Name, &it.CategoryID, &it.PendingCategoryName, &it.Description,
		&it.ImageKey, &it.ThumbKey, &it.FoundLocation, &it.FoundDate, &it.PubDate,
		&it.UploadedBy, &it.Status, &it.RetrievedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	it.CategoryName = item.CategoryName
	return &it, nil
}

// Delete removes an item. Holds cascade.
func (s *ItemStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// SetStatus updates the lifecycle status and the claimant.
func (s *ItemStore) SetStatus(ctx context.Context, id uuid.UUID, status models.ItemStatus, retrievedBy *uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = $1, retrieved_by = $2 WHERE id = $3
	`, status, retrievedBy, id)
	if err != nil {
		return fmt.Errorf("set item status: %w", err)
	}
	return nil
}

// ToggleHold removes the (item, user) hold if present, otherwise adds it,
// and reports whether the user holds the item afterwards.
func (s *ItemStore) ToggleHold(ctx context.Context, itemID, userID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM item_holds WHERE item_id = $1 AND user_id = $2
	`, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("release hold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release hold rows: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO item_holds (item_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("add hold: %w", err)
	}
	return true, nil
}

// AssignPending moves every item staged under pendingName (ignoring case)
// onto categoryID and returns how many moved.
func (s *ItemStore) AssignPending(ctx context.Context, pendingName string, categoryID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET category_id = $1, pending_category_name = NULL
		WHERE lower(pending_category_name) = lower($2)
	`, categoryID, pendingName)
	if err != nil {
		return 0, fmt.Errorf("assign pending items: %w", err)
	}
	return res.RowsAffected()
}

// ClearPending drops the pending name from items staged under it.
func (s *ItemStore) ClearPending(ctx context.Context, pendingName string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET pending_category_name = NULL
		WHERE lower(pending_category_name) = lower($1)
	`, pendingName)
	if err != nil {
		return 0, fmt.Errorf("clear pending items: %w", err)
	}
	return res.RowsAffected()
}

// CountByCategory returns the number of items in a category.
func (s *ItemStore) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE category_id = $1`, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items by category: %w", err)
	}
	return n, nil
}

// ListByUploader returns a user's uploads, newest first.
func (s *ItemStore) ListByUploader(ctx context.Context, userID uuid.UUID) ([]models.Item, error) {
	var args sqlArgs
	held := heldExpr(&userID, &args)
	query := fmt.Sprintf(itemSelect, held) +
		"\n\tWHERE i.uploaded_by = " + args.add(userID) +
		"\n\tORDER BY i.pub_date DESC, i.id"
	return s.list(ctx, query, args...)
}

// ListHeldBy returns the items a user holds, newest first.
func (s *ItemStore) ListHeldBy(ctx context.Context, userID uuid.UUID) ([]models.Item, error) {
	var args sqlArgs
	held := heldExpr(&userID, &args)
	query := fmt.Sprintf(itemSelect, held) +
		"\n\tWHERE EXISTS (SELECT 1 FROM item_holds w WHERE w.item_id = i.id AND w.user_id = " + args.add(userID) + ")" +
		"\n\tORDER BY i.pub_date DESC, i.id"
	return s.list(ctx, query, args...)
}
