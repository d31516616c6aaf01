// Package simulate generates fake Central Square CAD incidents and posts them
// to a running webhook for local testing.
package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/etl-central-square/internal/normalizer"
)

var callTypes = []string{
	"STRUCTURE FIRE",
	"MEDICAL EMERGENCY",
	"TRAFFIC ACCIDENT",
	"ALARM - COMMERCIAL",
	"HAZMAT",
	"WELFARE CHECK",
	"BRUSH FIRE",
}

var units = []string{"E1", "E4", "L2", "M7", "M12", "BC1", "R3", "T9"}

// Incident is a CAD incident in the shape produced by SampleMapping.
type Incident struct {
	IncidentNumber string    `json:"IncidentNumber"`
	CallType       string    `json:"CallType"`
	CallReceived   time.Time `json:"CallReceived"`
	Latitude       float64   `json:"Latitude"`
	Longitude      float64   `json:"Longitude"`
	Address        string    `json:"Address"`
	Unit           string    `json:"Unit"`
	Narrative      string    `json:"Narrative"`
}

// Batch is the webhook body: {"Incidents": [...]}.
type Batch struct {
	Incidents []Incident `json:"Incidents"`
}

// SampleMapping is the normalizer mapping matching generated incidents.
func SampleMapping() normalizer.Mapping {
	return normalizer.Mapping{
		Records:   "Incidents",
		ID:        "IncidentNumber",
		Time:      "CallReceived",
		Latitude:  "Latitude",
		Longitude: "Longitude",
		Callsign:  "Unit",
		Remarks:   "Narrative",
	}
}

// Generator produces incidents around a center point.
type Generator struct {
	faker  *gofakeit.Faker
	lat    float64
	lon    float64
	radius float64
}

// NewGenerator seeds a generator. A zero seed picks a random one.
func NewGenerator(seed int64, lat, lon, radius float64) *Generator {
	if radius <= 0 {
		radius = 0.1
	}
	return &Generator{
		faker:  gofakeit.New(seed),
		lat:    lat,
		lon:    lon,
		radius: radius,
	}
}

// Incident returns one fake incident.
func (g *Generator) Incident() Incident {
	lat, _ := g.faker.LatitudeInRange(g.lat-g.radius, g.lat+g.radius)
	lon, _ := g.faker.LongitudeInRange(g.lon-g.radius, g.lon+g.radius)
	return Incident{
		IncidentNumber: fmt.Sprintf("%d-%06d", time.Now().Year(), g.faker.Number(1, 999999)),
		CallType:       g.faker.RandomString(callTypes),
		CallReceived:   time.Now().UTC().Add(-time.Duration(g.faker.Number(0, 3600)) * time.Second).Truncate(time.Second),
		Latitude:       lat,
		Longitude:      lon,
		Address:        g.faker.Street() + ", " + g.faker.City(),
		Unit:           g.faker.RandomString(units),
		Narrative:      g.faker.Sentence(8),
	}
}

// Batch returns n incidents.
func (g *Generator) Batch(n int) Batch {
	incidents := make([]Incident, 0, n)
	for i := 0; i < n; i++ {
		incidents = append(incidents, g.Incident())
	}
	return Batch{Incidents: incidents}
}

// Response is the decoded webhook reply.
type Response struct {
	StatusCode int
	Status     int    `json:"status"`
	Message    string `json:"message"`
}

// Post sends batch to {baseURL}/{webhookID}.
func Post(ctx context.Context, client *http.Client, baseURL, webhookID string, batch Batch) (*Response, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	target, err := url.JoinPath(strings.TrimRight(baseURL, "/"), url.PathEscape(webhookID))
	if err != nil {
		return nil, fmt.Errorf("build webhook url: %w", err)
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
