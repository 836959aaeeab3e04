// Package portal builds the upstream GIS portal's query representation. The
// portal's own parser reads semicolon-delimited path segments in a fixed
// order; some transports reject that syntax, so an equivalent query-string
// form can be derived.
package portal

import (
	"net/url"
	"strings"

	"github.com/nkhandelwal/ingres-resolver/internal/model"
)

// DefaultBaseURL is the public INGRES data portal.
const DefaultBaseURL = "https://ingres.iith.ac.in/gecdataonline/gis/INDIA"

const (
	defaultYear            = "2024-2025"
	defaultComputationType = "normal"
)

// Params are the query parameters of one portal page.
type Params struct {
	Name             string
	Level            model.Level
	Year             string
	ComputationType  string
	Component        string
	Period           string
	Category         string
	MapOnClickParams bool
}

type Builder struct {
	Base string
}

func NewBuilder(base string) *Builder {
	if base == "" {
		base = DefaultBaseURL
	}
	return &Builder{Base: base}
}

// Build produces the semicolon-delimited portal URL. The field order is
// fixed; optional fields are omitted entirely when empty.
func (b *Builder) Build(pair model.IdentifierPair, p Params) string {
	year := p.Year
	if year == "" {
		year = defaultYear
	}
	ct := p.ComputationType
	if ct == "" {
		ct = defaultComputationType
	}

	segs := []string{
		"locname=" + strictEncode(p.Name),
		"loctype=" + string(p.Level),
		"view=ADMIN",
		"locuuid=" + pair.LocationUUID,
		"year=" + year,
		"computationType=" + ct,
	}
	if p.Component != "" {
		segs = append(segs, "component="+p.Component)
	}
	if p.Period != "" {
		segs = append(segs, "period="+p.Period)
	}
	if p.Category != "" {
		segs = append(segs, "category="+p.Category)
	}
	if p.MapOnClickParams {
		segs = append(segs, "mapOnClickParams=true")
	}
	segs = append(segs, "stateuuid="+pair.StateUUID)

	return b.Base + ";" + strings.Join(segs, ";")
}

// SearchURLs are the candidate URLs the resolver scrapes for identifiers:
// the portal's semicolon form first, then a plain search query.
func (b *Builder) SearchURLs(name string, level model.Level) []string {
	enc := strictEncode(name)
	return []string{
		b.Base + ";locname=" + enc + ";loctype=" + string(level),
		b.Base + "?search=" + enc,
	}
}

// ToQueryStringForm rewrites the semicolon-delimited segments after the base
// path into an ?a=b&c=d query string. A URL without semicolons is returned
// unchanged, which also makes the function idempotent.
func ToQueryStringForm(u string) string {
	idx := strings.IndexByte(u, ';')
	if idx == -1 {
		return u
	}
	base := u[:idx]
	var parts []string
	for _, p := range strings.Split(u[idx+1:], ";") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return base + "?" + strings.Join(parts, "&")
}

// strictEncode percent-encodes name, additionally escaping parentheses: the
// portal treats literal ( and ) in locname as a parse error.
func strictEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
