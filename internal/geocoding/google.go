package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Result holds the locality data of a reverse geocoding answer.
type Result struct {
	Locality   string `json:"locality"`
	PostalCode string `json:"postal_code"`
	Department string `json:"department"`
	Region     string `json:"region"`
	Formatted  string `json:"formatted"`
}

// Label is the short place name shown to moderators, e.g. "Grasse (06130)".
func (r *Result) Label() string {
	switch {
	case r == nil:
		return ""
	case r.Locality != "" && r.PostalCode != "":
		return fmt.Sprintf("%s (%s)", r.Locality, r.PostalCode)
	case r.Locality != "":
		return r.Locality
	default:
		return r.Formatted
	}
}

// Client wraps the Google Maps Geocoding API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewClient returns nil when apiKey is empty (geocoding disabled).
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		language: "fr",
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		cache: cache.New(24*time.Hour, time.Hour),
	}
}

// WithBaseURL points the client at another endpoint (tests, proxies).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
}

type geocodeResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Reverse resolves a WGS84 point to its locality. Answers are cached per
// point rounded to about 10m.
func (c *Client) Reverse(ctx context.Context, lng, lat float64) (*Result, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lng)
	if v, ok := c.cache.Get(key); ok {
		return v.(*Result), nil
	}

	body, err := c.fetch(ctx, lng, lat)
	if err != nil {
		return nil, err
	}

	var out *Result
	switch body.Status {
	case "ZERO_RESULTS":
		out = &Result{}
	case "OK":
		if len(body.Results) == 0 {
			return nil, fmt.Errorf("geocoding: status OK without results")
		}
		out = body.Results[0].result()
	default:
		return nil, fmt.Errorf("geocoding: status=%s %s", body.Status, body.ErrorMessage)
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

func (c *Client) fetch(ctx context.Context, lng, lat float64) (*geocodeResponse, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("geocoding: base url: %w", err)
	}
	endpoint.RawQuery = url.Values{
		"latlng":   {strconv.FormatFloat(lat, 'f', 6, 64) + "," + strconv.FormatFloat(lng, 'f', 6, 64)},
		"language": {c.language},
		"key":      {c.apiKey},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocoding: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding: upstream answered HTTP %d", resp.StatusCode)
	}
	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geocoding: decode: %w", err)
	}
	return &body, nil
}

// result keeps the first component of each administrative level we show.
func (g geocodeResult) result() *Result {
	out := &Result{Formatted: g.FormattedAddress}
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	for _, comp := range g.AddressComponents {
		for _, kind := range comp.Types {
			switch kind {
			case "locality":
				set(&out.Locality, comp.LongName)
			case "postal_code":
				set(&out.PostalCode, comp.ShortName)
			case "administrative_area_level_2":
				set(&out.Department, comp.LongName)
			case "administrative_area_level_1":
				set(&out.Region, comp.LongName)
			}
		}
	}
	return out
}
