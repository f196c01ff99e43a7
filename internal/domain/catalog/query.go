// internal/domain/catalog/query.go
package catalog

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// SortKey enumerates the catalog orderings offered to the user. The
// values are the tokens used in the navigable URL.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortPopular   SortKey = "popular"
)

// URL query parameter names recognized by the resolver. Anything else in
// the URL is ignored for forward compatibility.
const (
	paramSearch   = "q"
	paramMinPrice = "min_price"
	paramMaxPrice = "max_price"
	paramColor    = "color"
	paramSize     = "size"
	paramInStock  = "in_stock"
	paramSort     = "sort"
)

// catalogPathPrefix is the location path the catalog view lives under;
// the category slug is the remainder of the path, not a query parameter.
const catalogPathPrefix = "/catalog"

// Query is the resolved set of catalog filters and ordering. It is a
// pure function of the URL: every field round-trips through Values.
type Query struct {
	CategorySlug string
	Search       string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Color        string
	SizeID       string
	InStockOnly  bool
	Sort         SortKey
}

// ParseValues builds a query from URL parameters. Recognized but invalid
// values (e.g. a non-numeric price) are treated as absent, not as errors;
// unrecognized parameters are ignored.
func ParseValues(values url.Values) Query {
	q := Query{
		Search: values.Get(paramSearch),
		Color:  values.Get(paramColor),
		SizeID: values.Get(paramSize),
		Sort:   parseSortKey(values.Get(paramSort)),
	}

	q.MinPrice = parsePrice(values.Get(paramMinPrice))
	q.MaxPrice = parsePrice(values.Get(paramMaxPrice))
	q.InStockOnly = values.Get(paramInStock) == "true"

	return q
}

// CategoryFromPath extracts the category slug from a catalog location
// path; empty for the root catalog or non-catalog paths.
func CategoryFromPath(path string) string {
	if !strings.HasPrefix(path, catalogPathPrefix) {
		return ""
	}
	rest := strings.Trim(strings.TrimPrefix(path, catalogPathPrefix), "/")
	return rest
}

// IsCatalogPath reports whether the location path belongs to the catalog view
func IsCatalogPath(path string) bool {
	return path == catalogPathPrefix || strings.HasPrefix(path, catalogPathPrefix+"/")
}

// Path returns the location path for the query's category
func (q Query) Path() string {
	if q.CategorySlug == "" {
		return catalogPathPrefix
	}
	return catalogPathPrefix + "/" + q.CategorySlug
}

// Values serializes the query back to URL parameters. Defaults are
// omitted so that clean URLs stay clean; the category slug lives in the
// path and is not serialized here.
func (q Query) Values() url.Values {
	values := url.Values{}
	if q.Search != "" {
		values.Set(paramSearch, q.Search)
	}
	if q.MinPrice != nil {
		values.Set(paramMinPrice, q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		values.Set(paramMaxPrice, q.MaxPrice.String())
	}
	if q.Color != "" {
		values.Set(paramColor, q.Color)
	}
	if q.SizeID != "" {
		values.Set(paramSize, q.SizeID)
	}
	if q.InStockOnly {
		values.Set(paramInStock, "true")
	}
	if q.Sort != "" && q.Sort != SortNewest {
		values.Set(paramSort, string(q.Sort))
	}
	return values
}

// FetchParams maps the query to the parameter shape the commerce service
// expects, including the sort-key to ordering-field translation.
func (q Query) FetchParams() url.Values {
	params := url.Values{}
	if q.CategorySlug != "" {
		params.Set("category_slug", q.CategorySlug)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.MinPrice != nil {
		params.Set("min_price", q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		params.Set("max_price", q.MaxPrice.String())
	}
	if q.Color != "" {
		params.Set("color", q.Color)
	}
	if q.SizeID != "" {
		params.Set("size", q.SizeID)
	}
	if q.InStockOnly {
		params.Set("in_stock", "true")
	}
	params.Set("ordering", q.Ordering())
	return params
}

// Ordering translates the sort key to the service's ordering field
func (q Query) Ordering() string {
	switch q.Sort {
	case SortPriceAsc:
		return "price"
	case SortPriceDesc:
		return "-price"
	case SortPopular:
		return "-views_count"
	default:
		return "-created_at"
	}
}

// Equal reports whether two resolved queries request the same result set
func (q Query) Equal(other Query) bool {
	return q.CategorySlug == other.CategorySlug &&
		q.Search == other.Search &&
		q.Color == other.Color &&
		q.SizeID == other.SizeID &&
		q.InStockOnly == other.InStockOnly &&
		q.Sort == other.Sort &&
		decimalPtrEqual(q.MinPrice, other.MinPrice) &&
		decimalPtrEqual(q.MaxPrice, other.MaxPrice)
}

func parseSortKey(raw string) SortKey {
	switch SortKey(raw) {
	case SortPriceAsc, SortPriceDesc, SortPopular, SortNewest:
		return SortKey(raw)
	default:
		// Unknown tokens fall back to the default ordering
		return SortNewest
	}
}

func parsePrice(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
