// Package query turns a flat map of request parameters into a searched,
// filtered, sorted and paginated gorm query, plus the pagination metadata
// for the same result set.
//
// Steps run in a fixed order whatever order they were chained in: base
// scopes, search, filter, sort, paginate, field selection. CountTotal only
// applies base scopes, search and filter.
package query

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/tbourn/go-advisor-backend/internal/utils"
)

// Reserved parameter names. Every other key is an exact-match filter.
const (
	ParamSearch    = "searchTerm"
	ParamSort      = "sort"
	ParamSortBy    = "sortBy"
	ParamSortOrder = "sortOrder"
	ParamOrder     = "order"
	ParamPage      = "page"
	ParamLimit     = "limit"
	ParamFields    = "fields"
)

var reserved = map[string]struct{}{
	ParamSearch: {}, ParamSort: {}, ParamSortBy: {}, ParamSortOrder: {}, ParamOrder: {},
	ParamPage: {}, ParamLimit: {}, ParamFields: {},
}

var schemaCache sync.Map

// Meta is the pagination block returned next to a page of results.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// Option customises a Builder.
type Option func(*Builder)

// WithDefaultLimit sets the page size used when limit is absent or invalid.
func WithDefaultLimit(n int) Option { return func(b *Builder) { b.defLimit = n } }

// WithDefaultSort sets the field used when sortBy is absent or unknown.
func WithDefaultSort(field string) Option { return func(b *Builder) { b.defSort = field } }

// WithScope adds a condition applied to both Find and CountTotal, for
// constraints the caller cannot override (e.g. role = 'user').
func WithScope(fn func(*gorm.DB) *gorm.DB) Option {
	return func(b *Builder) { b.base = append(b.base, fn) }
}

type scope = func(*gorm.DB) *gorm.DB

// Builder accumulates scopes for one list request. It is not safe for
// concurrent use and is meant to be discarded after Run.
type Builder struct {
	db     *gorm.DB
	model  any
	sch    *schema.Schema
	params map[string]string
	err    error

	base   []scope
	search []scope
	filter []scope
	order  []scope
	window []scope
	proj   []scope

	defLimit    int
	defSort     string
	page, limit int
}

// New prepares a builder for model (a pointer to a gorm model) and params.
func New(db *gorm.DB, model any, params map[string]string, opts ...Option) *Builder {
	b := &Builder{
		db:       db,
		model:    model,
		params:   params,
		defLimit: 10,
		defSort:  "created_at",
	}
	for _, o := range opts {
		o(b)
	}
	if b.params == nil {
		b.params = map[string]string{}
	}
	b.page, b.limit, _ = utils.PageWindow(b.params[ParamPage], b.params[ParamLimit], b.defLimit)

	sch, err := schema.Parse(model, &schemaCache, db.NamingStrategy)
	if err != nil {
		b.err = fmt.Errorf("query: parse %T: %w", model, err)
		return b
	}
	b.sch = sch
	return b
}

// Search ORs a case-insensitive substring match of searchTerm over fields.
// The field list comes from code, so hidden columns may be searched.
func (b *Builder) Search(fields ...string) *Builder {
	term := strings.TrimSpace(b.params[ParamSearch])
	if term == "" || b.sch == nil {
		return b
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	exprs := make([]clause.Expression, 0, len(fields))
	for _, name := range fields {
		f := b.lookup(name, false)
		if f == nil {
			continue
		}
		exprs = append(exprs, clause.Expr{
			SQL:  `LOWER(?) LIKE ? ESCAPE '\'`,
			Vars: []any{clause.Column{Name: f.DBName}, pattern},
		})
	}
	switch len(exprs) {
	case 0:
	case 1:
		e := exprs[0]
		b.search = append(b.search, func(tx *gorm.DB) *gorm.DB { return tx.Where(e) })
	default:
		// A single-element OrConditions would be joined with OR to earlier
		// conditions, so the one-field case above stays a plain expression.
		or := clause.Or(exprs...)
		b.search = append(b.search, func(tx *gorm.DB) *gorm.DB { return tx.Where(or) })
	}
	return b
}

// Filter turns every non-reserved parameter into an equality on the column
// of the same name. Unknown or hidden fields, and values that do not parse as
// the column type, match nothing.
func (b *Builder) Filter() *Builder {
	keys := make([]string, 0, len(b.params))
	for k := range b.params {
		if _, skip := reserved[k]; !skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		f := b.lookup(k, true)
		if f == nil {
			b.filter = append(b.filter, matchNothing)
			continue
		}
		v, ok := coerce(f, b.params[k])
		if !ok {
			b.filter = append(b.filter, matchNothing)
			continue
		}
		eq := clause.Eq{Column: clause.Column{Name: f.DBName}, Value: v}
		b.filter = append(b.filter, func(tx *gorm.DB) *gorm.DB { return tx.Where(eq) })
	}
	return b
}

// Sort orders by sort or sortBy (default field when absent or unknown).
// A leading "-" on the field means descending; without it, sort is
// ascending while sortBy takes its direction from sortOrder (or order),
// newest first by default. The primary key breaks ties.
func (b *Builder) Sort() *Builder {
	if b.sch == nil {
		return b
	}
	name, desc := sortKey(b.params)

	f := b.lookup(name, true)
	if f == nil {
		f = b.lookup(b.defSort, false)
	}
	var cols []clause.OrderByColumn
	if f != nil {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: f.DBName}, Desc: desc})
	}
	if pk := b.sch.PrioritizedPrimaryField; pk != nil && (f == nil || pk.DBName != f.DBName) {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: pk.DBName}, Desc: desc})
	}
	b.order = append(b.order, func(tx *gorm.DB) *gorm.DB {
		return tx.Clauses(clause.OrderBy{Columns: cols})
	})
	return b
}

// Paginate applies the page window computed from page and limit.
func (b *Builder) Paginate() *Builder {
	offset, limit := (b.page-1)*b.limit, b.limit
	b.window = append(b.window, func(tx *gorm.DB) *gorm.DB { return tx.Offset(offset).Limit(limit) })
	return b
}

// Fields restricts the selected columns. "a,b" selects, "-a" omits; the
// primary key is always returned. Unknown names are ignored.
func (b *Builder) Fields() *Builder {
	raw := strings.TrimSpace(b.params[ParamFields])
	if raw == "" || b.sch == nil {
		return b
	}
	var include, exclude []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		neg := strings.HasPrefix(name, "-")
		f := b.lookup(strings.TrimPrefix(name, "-"), true)
		if f == nil {
			continue
		}
		if neg {
			exclude = append(exclude, f.DBName)
		} else {
			include = append(include, f.DBName)
		}
	}
	pk := b.sch.PrioritizedPrimaryField
	switch {
	case len(include) > 0:
		if pk != nil && !contains(include, pk.DBName) {
			include = append([]string{pk.DBName}, include...)
		}
		b.proj = append(b.proj, func(tx *gorm.DB) *gorm.DB { return tx.Select(include) })
	case len(exclude) > 0:
		if pk != nil {
			exclude = remove(exclude, pk.DBName)
		}
		b.proj = append(b.proj, func(tx *gorm.DB) *gorm.DB { return tx.Omit(exclude...) })
	}
	return b
}

// Find loads the current page into dest (a pointer to a slice of the model).
func (b *Builder) Find(ctx context.Context, dest any) error {
	if b.err != nil {
		return b.err
	}
	scopes := b.join(b.base, b.search, b.filter, b.order, b.window, b.proj)
	return b.db.WithContext(ctx).Model(b.model).Scopes(scopes...).Find(dest).Error
}

// CountTotal counts every row matching base scopes, search and filter.
func (b *Builder) CountTotal(ctx context.Context) (Meta, error) {
	if b.err != nil {
		return Meta{}, b.err
	}
	var total int64
	scopes := b.join(b.base, b.search, b.filter)
	if err := b.db.WithContext(ctx).Model(b.model).Scopes(scopes...).Count(&total).Error; err != nil {
		return Meta{}, err
	}
	pages := utils.TotalPages(total, b.limit)
	return Meta{
		Page:       b.page,
		Limit:      b.limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    b.page < pages,
	}, nil
}

// Run applies every step and returns the page plus its metadata.
func (b *Builder) Run(ctx context.Context, dest any, searchFields ...string) (Meta, error) {
	b.Search(searchFields...).Filter().Sort().Paginate().Fields()
	if err := b.Find(ctx, dest); err != nil {
		return Meta{}, err
	}
	return b.CountTotal(ctx)
}

func (b *Builder) join(groups ...[]scope) []scope {
	var out []scope
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// lookup resolves a parameter name by column name, Go field name (any case)
// or json tag. Fields tagged json:"-" are invisible when public is set.
func (b *Builder) lookup(name string, public bool) *schema.Field {
	if b.sch == nil || name == "" {
		return nil
	}
	for _, f := range b.sch.Fields {
		if f.DBName == "" {
			continue
		}
		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if public && tag == "-" {
			continue
		}
		if f.DBName == name || strings.EqualFold(f.Name, name) || (tag != "" && tag == name) {
			return f
		}
	}
	return nil
}

func coerce(f *schema.Field, raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	t := f.IndirectFieldType
	if t == reflect.TypeOf(time.Time{}) {
		ts, err := time.Parse(time.RFC3339, raw)
		return ts, err == nil
	}
	switch t.Kind() {
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		return v, err == nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		return v, err == nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(raw, 10, 64)
		return v, err == nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, 64)
		return v, err == nil
	case reflect.String:
		return raw, true
	}
	return nil, false
}

func matchNothing(tx *gorm.DB) *gorm.DB { return tx.Where("1 = 0") }

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func sortKey(params map[string]string) (string, bool) {
	if name := strings.TrimSpace(params[ParamSort]); name != "" {
		if strings.HasPrefix(name, "-") {
			return name[1:], true
		}
		return strings.TrimPrefix(name, "+"), false
	}
	name := strings.TrimSpace(params[ParamSortBy])
	if strings.HasPrefix(name, "-") {
		return name[1:], true
	}
	switch strings.ToLower(firstSet(params[ParamSortOrder], params[ParamOrder])) {
	case "asc", "1", "ascending":
		return name, false
	}
	return name, true
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
