package models

// FeedQuery filters and orders the project feed. Cursor is opaque to the
// caller: pass back NextCursor verbatim to get the following page.
type FeedQuery struct {
	Cursor       string `json:"cursor,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	FeaturedOnly bool   `json:"featuredOnly,omitempty"`
	Tag          string `json:"tag,omitempty"`
	Sort         Sort   `json:"sort,omitempty"`
	Slug         string `json:"slug,omitempty"`
}

// EffectiveLimit resolves the page size, defaulting to ProjectPageSize and
// capping at twice that.
func (q FeedQuery) EffectiveLimit() int {
	limit := q.Limit
	if limit <= 0 {
		limit = ProjectPageSize
	}
	if limit > ProjectPageSize*2 {
		limit = ProjectPageSize * 2
	}
	return limit
}

// EffectiveSort resolves the sort mode, defaulting to SortNew.
func (q FeedQuery) EffectiveSort() Sort {
	if q.Sort == "" {
		return SortNew
	}
	return q.Sort
}

// FeedPage is one page of the project feed. NextCursor is present iff the
// page was full (len(Projects) == requested limit).
type FeedPage struct {
	Projects   []ProjectRecord `json:"projects"`
	NextCursor string          `json:"nextCursor,omitempty"`
}
