// Package client talks to the trip API over HTTP. It lets a tracker running
// outside the server persist its points.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

type TripClient struct {
	baseURL string
	http    *http.Client
}

// NewTripClient returns a client for the API mounted at baseURL, e.g.
// http://localhost:8080/api.
func NewTripClient(baseURL string, timeout time.Duration) *TripClient {
	return &TripClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error string `json:"error"`
}

type pointBody struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	Ts  time.Time `json:"ts"`
}

func (c *TripClient) GetTrip(ctx context.Context, id string) (*domain.Trip, error) {
	var trip domain.Trip
	if err := c.do(ctx, http.MethodGet, "/trips/"+id, nil, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (c *TripClient) CreateTrip(ctx context.Context, in *domain.NewTrip) (*domain.Trip, error) {
	var trip domain.Trip
	if err := c.do(ctx, http.MethodPost, "/trips", in, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (c *TripClient) SavePoint(ctx context.Context, tripID string, sample domain.GeoSample) error {
	body := pointBody{Lat: sample.Location.Lat, Lng: sample.Location.Lng, Ts: sample.Timestamp.UTC()}
	return c.do(ctx, http.MethodPost, "/trips/"+tripID+"/point", body, nil)
}

func (c *TripClient) EndTrip(ctx context.Context, tripID string) error {
	return c.do(ctx, http.MethodPost, "/trips/"+tripID+"/end", nil, nil)
}

func (c *TripClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return domain.ErrTripNotFound
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", domain.ErrInvalidInput, apiErr.Error)
		default:
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
