package render

import (
	"fmt"
	"regexp"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Context is the typed bundle merge fields resolve against. Values are keyed
// by category and field key; Locale, Timezone, and Currency drive the
// type-directed formatting.
type Context struct {
	Locale   string
	Timezone string
	Currency string
	Values   map[domain.MergeFieldCategory]map[string]domain.FieldValue
}

func NewContext(locale, timezone, currency string) Context {
	return Context{
		Locale:   locale,
		Timezone: timezone,
		Currency: currency,
		Values:   make(map[domain.MergeFieldCategory]map[string]domain.FieldValue),
	}
}

// Set registers a raw value for a field key under its category.
func (c Context) Set(cat domain.MergeFieldCategory, key string, v domain.FieldValue) {
	m, ok := c.Values[cat]
	if !ok {
		m = make(map[string]domain.FieldValue)
		c.Values[cat] = m
	}
	m[key] = v
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Resolver turns a template's merge-field declarations plus a context bundle
// into formatted string values. Resolution runs category by category in the
// fixed order system > company > client > project > contract/invoice, so a
// later field's text may embed an earlier-resolved value. Within one category
// references are allowed as long as they are acyclic.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

func (r *Resolver) Resolve(fields []models.MergeField, ctx Context) (map[string]string, error) {
	byKey := make(map[string]models.MergeField, len(fields))
	for _, f := range fields {
		if _, dup := byKey[f.Key]; dup {
			return nil, &domain.ValidationError{Field: f.Key, Reason: "duplicate merge field key"}
		}
		byKey[f.Key] = f
	}

	categoryOf := func(key string) (domain.MergeFieldCategory, bool) {
		f, ok := byKey[key]
		return f.Category, ok
	}

	resolved := make(map[string]string, len(fields))

	for _, cat := range domain.CategoryOrder {
		var pending []models.MergeField
		for _, f := range fields {
			if f.Category == cat {
				pending = append(pending, f)
			}
		}

		// Multi-pass within the category: a pass that makes no progress
		// while fields remain means a cyclic same-category reference.
		for len(pending) > 0 {
			progressed := false
			var next []models.MergeField

			for _, f := range pending {
				raw, ok := ctx.Values[cat][f.Key]
				if !ok {
					if f.Optional {
						resolved[f.Key] = ""
						progressed = true
						continue
					}
					return nil, &domain.ResolutionError{Key: f.Key, Reason: "no resolvable value"}
				}
				if raw.Kind != f.Kind {
					return nil, &domain.ResolutionError{
						Key:    f.Key,
						Reason: fmt.Sprintf("value kind %q does not match declared %q", raw.Kind, f.Kind),
					}
				}

				formatted, ready, err := r.format(f, raw, ctx, resolved, categoryOf)
				if err != nil {
					return nil, err
				}
				if !ready {
					next = append(next, f)
					continue
				}
				resolved[f.Key] = formatted
				progressed = true
			}

			if !progressed {
				return nil, &domain.ResolutionError{
					Key:    next[0].Key,
					Reason: "cyclic reference between same-category fields",
				}
			}
			pending = next
		}
	}

	return resolved, nil
}

// format renders one raw value. Text values may embed placeholders; a
// reference to a not-yet-resolved same-category field defers the value to the
// next pass, anything else unresolved is an error.
func (r *Resolver) format(f models.MergeField, raw domain.FieldValue, ctx Context, resolved map[string]string, categoryOf func(string) (domain.MergeFieldCategory, bool)) (string, bool, error) {
	switch f.Kind {
	case domain.FieldDate:
		return formatDate(raw.Date, ctx.Locale, ctx.Timezone), true, nil
	case domain.FieldCurrency:
		return FormatCurrency(raw.Amount, ctx.Currency), true, nil
	case domain.FieldText:
		for _, m := range placeholderRe.FindAllStringSubmatch(raw.Text, -1) {
			ref := m[1]
			if _, ok := resolved[ref]; ok {
				continue
			}
			refCat, declared := categoryOf(ref)
			if !declared {
				return "", false, &domain.ResolutionError{Key: f.Key, Reason: fmt.Sprintf("references undeclared field %q", ref)}
			}
			if refCat == f.Category {
				// Same category, not resolved yet: defer to the next pass.
				return "", false, nil
			}
			// Earlier categories are always fully resolved by now, so this
			// must be a forward reference into a later category.
			return "", false, &domain.ResolutionError{
				Key:    f.Key,
				Reason: fmt.Sprintf("forward reference to later-category field %q", ref),
			}
		}
		out := placeholderRe.ReplaceAllStringFunc(raw.Text, func(s string) string {
			sub := placeholderRe.FindStringSubmatch(s)
			return resolved[sub[1]]
		})
		return out, true, nil
	}
	return "", false, &domain.ValidationError{Field: f.Key, Reason: fmt.Sprintf("unknown field kind %q", f.Kind)}
}

func formatDate(t time.Time, locale, timezone string) string {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err == nil {
			t = t.In(loc)
		}
	}
	switch locale {
	case "en-US":
		return t.Format("January 2, 2006")
	case "en-GB", "fr-FR":
		return t.Format("02/01/2006")
	case "de-DE":
		return t.Format("02.01.2006")
	default:
		return t.Format("2006-01-02")
	}
}

// FormatCurrency renders an amount with its currency's minor-unit precision.
func FormatCurrency(amount decimal.Decimal, currency string) string {
	places := int32(2)
	switch currency {
	case "JPY", "KRW", "VND":
		places = 0
	}
	fixed := amount.StringFixed(places)
	switch currency {
	case "USD":
		return "$" + fixed
	case "EUR":
		return "€" + fixed
	case "GBP":
		return "£" + fixed
	default:
		return currency + " " + fixed
	}
}
