package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lostfound/internal/models"
)

// dateLayout is the wire format of date inputs.
const dateLayout = "2006-01-02"

// View modes accepted by the listing pages.
const (
	ViewList = "list"
	ViewGrid = "grid"
)

// FilterForm echoes the raw filter inputs so a listing page can re-render
// the form exactly as submitted.
type FilterForm struct {
	Q                string
	Categories       []string
	FoundDate        string
	SortBy           string
	IncludeRetrieved bool
	View             string
}

// HasCategory reports whether id was selected in the form.
func (f FilterForm) HasCategory(id uuid.UUID) bool {
	s := id.String()
	for _, c := range f.Categories {
		if c == s {
			return true
		}
	}
	return false
}

// Encode returns the form as a query string, for the fragment endpoint and
// for cache keys. Values are emitted in a stable order and the category
// selection is sorted, so the same filter always encodes the same way.
func (f FilterForm) Encode() string {
	v := url.Values{}
	if f.Q != "" {
		v.Set("q", f.Q)
	}
	cats := append([]string(nil), f.Categories...)
	sort.Strings(cats)
	for _, c := range cats {
		v.Add("categories", c)
	}
	if f.FoundDate != "" {
		v.Set("found_date", f.FoundDate)
	}
	if f.SortBy != "" {
		v.Set("sort_by", f.SortBy)
	}
	if f.IncludeRetrieved {
		v.Set("include_retrieved", "on")
	}
	if f.View != "" && f.View != ViewList {
		v.Set("view", f.View)
	}
	return v.Encode()
}

// ParseQuery validates listing parameters. On any field error the returned
// query is the fallback listing: default sort, no filters except the
// retrieved-visibility rule.
func ParseQuery(values url.Values) (models.ItemQuery, FilterForm, FieldErrors) {
	form := FilterForm{
		Q:                strings.TrimSpace(values.Get("q")),
		Categories:       values["categories"],
		FoundDate:        strings.TrimSpace(values.Get("found_date")),
		SortBy:           strings.TrimSpace(values.Get("sort_by")),
		IncludeRetrieved: parseBool(values.Get("include_retrieved")),
		View:             values.Get("view"),
	}
	if form.View == "" {
		form.View = values.Get("viewMode")
	}
	if form.View != ViewGrid {
		form.View = ViewList
	}

	fe := FieldErrors{}
	q := models.ItemQuery{
		Text:             form.Q,
		Sort:             models.DefaultSort,
		IncludeRetrieved: form.IncludeRetrieved,
	}

	for _, raw := range form.Categories {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			fe.Add("categories", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", raw))
			continue
		}
		q.CategoryIDs = append(q.CategoryIDs, id)
	}

	if form.FoundDate != "" {
		d, err := time.Parse(dateLayout, form.FoundDate)
		if err != nil {
			fe.Add("found_date", "Enter a valid date.")
		} else {
			q.FoundDate = &d
		}
	}

	if form.SortBy != "" {
		key := models.SortKey(form.SortBy)
		if !key.Valid() {
			fe.Add("sort_by", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", form.SortBy))
		} else {
			q.Sort = key
		}
	}

	if len(fe) > 0 {
		return fallbackQuery(form.IncludeRetrieved), form, fe
	}
	return q, form, fe
}

func fallbackQuery(includeRetrieved bool) models.ItemQuery {
	return models.ItemQuery{Sort: models.DefaultSort, IncludeRetrieved: includeRetrieved}
}

// parseBool follows checkbox semantics: absent, "false", "0" and "off" are
// false, anything else is true.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "off":
		return false
	}
	return true
}
