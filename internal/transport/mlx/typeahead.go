package mlx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Location is one area the typeahead endpoint knows about.
type Location struct {
	Code       string
	Name       string
	Confidence float64
}

// Locations groups typeahead matches by area kind.
type Locations struct {
	Subareas    []Location
	Communities []Location
}

const (
	prefixSubarea   = "list_subarea:"
	prefixCommunity = "community:"
)

var parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)

// Typeahead resolves a free-text query to area codes. Active and sold
// listing indexes know about different areas, so both are queried and the
// union returned.
func (c *Client) Typeahead(ctx context.Context, query string) (Locations, error) {
	var out Locations
	seen := map[string]struct{}{}

	for _, listingType := range []string{"AUTO", listingTypeSold} {
		items, err := c.typeaheadQuery(ctx, query, listingType)
		if err != nil {
			return Locations{}, fmt.Errorf("typeahead %q (%s): %w", query, listingType, err)
		}
		for _, item := range items {
			loc, prefix, ok := parseTypeaheadItem(item)
			if !ok {
				continue
			}
			if _, dup := seen[prefix+loc.Code]; dup {
				continue
			}
			seen[prefix+loc.Code] = struct{}{}

			switch prefix {
			case prefixSubarea:
				out.Subareas = append(out.Subareas, loc)
			case prefixCommunity:
				out.Communities = append(out.Communities, loc)
			}
		}
	}
	return out, nil
}

func (c *Client) typeaheadQuery(
	ctx context.Context, query, listingType string,
) ([]json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer c.limiter.Release()
	}

	u, err := url.Parse(c.cfg.TypeaheadURL)
	if err != nil {
		return nil, fmt.Errorf("typeahead url: %w", err)
	}
	q := u.Query()
	q.Set("listingType", listingType)
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return items, nil
}

// parseTypeaheadItem decodes one positional entry:
// ["list_subarea:C-508", "Panorama Hills (Panorama)", 0.93, <polygon>].
func parseTypeaheadItem(item json.RawMessage) (Location, string, bool) {
	var fields []json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || len(fields) < 3 {
		return Location{}, "", false
	}

	var typeCode, name string
	var confidence float64
	if err := json.Unmarshal(fields[0], &typeCode); err != nil {
		return Location{}, "", false
	}
	if err := json.Unmarshal(fields[1], &name); err != nil {
		return Location{}, "", false
	}
	_ = json.Unmarshal(fields[2], &confidence)

	var prefix string
	switch {
	case strings.HasPrefix(typeCode, prefixSubarea):
		prefix = prefixSubarea
	case strings.HasPrefix(typeCode, prefixCommunity):
		prefix = prefixCommunity
	default:
		return Location{}, "", false
	}

	return Location{
		Code:       strings.TrimPrefix(typeCode, prefix),
		Name:       strings.TrimSpace(parenthetical.ReplaceAllString(name, "")),
		Confidence: confidence,
	}, prefix, true
}
