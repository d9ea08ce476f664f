// Package repository defines the functional options stores accept for
// filtering, ordering and limiting lookups.
package repository

// Option refines a Query.
type Option func(*Query)

// Query is the accumulated result of a set of options. Stores translate it
// into SQL; domain code only builds it.
type Query struct {
	filters []Filter
	sorts   []Sort
	limit   int
	params  map[string]any
}

// Build applies options in order to an empty Query.
func Build(options ...Option) Query {
	var q Query
	for _, opt := range options {
		opt(&q)
	}
	return q
}

// Filters returns a copy of the equality filters.
func (q Query) Filters() []Filter { return append([]Filter(nil), q.filters...) }

// Sorts returns a copy of the sort keys in priority order.
func (q Query) Sorts() []Sort { return append([]Sort(nil), q.sorts...) }

// Limit returns the row limit, 0 for none.
func (q Query) Limit() int { return q.limit }

// Param looks up a store-specific parameter.
func (q Query) Param(key string) (any, bool) {
	v, ok := q.params[key]
	return v, ok
}

// Filter matches rows whose Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Sort orders rows by Column.
type Sort struct {
	Column     string
	Descending bool
}

// Where filters on column = value.
func Where(column string, value any) Option {
	return func(q *Query) { q.filters = append(q.filters, Filter{Column: column, Value: value}) }
}

// WithID filters on the primary key.
func WithID(id any) Option { return Where("id", id) }

// WithVideoID filters on the owning video.
func WithVideoID(id string) Option { return Where("video_id", id) }

// WithLimit caps the number of rows returned.
func WithLimit(n int) Option {
	return func(q *Query) { q.limit = n }
}

// WithOrderAsc sorts ascending by column.
func WithOrderAsc(column string) Option {
	return func(q *Query) { q.sorts = append(q.sorts, Sort{Column: column}) }
}

// WithOrderDesc sorts descending by column.
func WithOrderDesc(column string) Option {
	return func(q *Query) { q.sorts = append(q.sorts, Sort{Column: column, Descending: true}) }
}

// WithParam attaches a value that only a specific store understands, such
// as a query embedding.
func WithParam(key string, value any) Option {
	return func(q *Query) {
		if q.params == nil {
			q.params = map[string]any{}
		}
		q.params[key] = value
	}
}
