// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// DefaultNominatimURL is the public OSM Nominatim endpoint. Production
// deployments should point at a self-hosted instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimClient is the external Lookup tier backed by a Nominatim
// search endpoint. The caller is responsible for rate limiting; the
// public instance enforces one request per second.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// nominatimResult is one entry of the /search response. Importance is a
// pointer because the field is optional and absence is not zero
// confidence.
type nominatimResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	Importance  *float64 `json:"importance"`
}

// confidence maps Nominatim's importance onto [0,1]. Importance is
// unbounded above for globally prominent places; a missing field gets a
// neutral 0.5.
func (r nominatimResult) confidence() float64 {
	if r.Importance == nil {
		return 0.5
	}
	c := *r.Importance
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

// NewNominatimClient creates a client for the given endpoint. Empty
// baseURL selects the public instance; Nominatim requires a descriptive
// User-Agent, so userAgent must not be empty.
func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Geocode queries the search endpoint for place, narrowing with the
// region bias when present. Returns (nil, nil) when Nominatim finds no
// match.
func (c *NominatimClient) Geocode(ctx context.Context, place, bias string) (*Coordinates, error) {
	query := place
	if bias != "" {
		query = place + ", " + bias
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("nominatim: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nominatim: status %d: %s", resp.StatusCode, body)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("nominatim: decode response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: parse longitude %q: %w", results[0].Lon, err)
	}

	return &Coordinates{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: results[0].DisplayName,
		Confidence:  results[0].confidence(),
	}, nil
}
