package forecastapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avydash/avydash/internal/avalanche"
)

// ErrEnvelope is returned when the response is not a readable forecast document.
var ErrEnvelope = errors.New("unreadable forecast document")

// subregionEntry is one value of the keyed forecast document.
type subregionEntry struct {
	Rating     json.RawMessage `json:"rating"`
	ValidFrom  string          `json:"validFrom"`
	ValidUntil string          `json:"validUntil"`
	Summary    string          `json:"summary"`
}

// pointReport is the report of the Avalanche Canada point forecast document.
type pointReport struct {
	Title         string     `json:"title"`
	DateIssued    string     `json:"dateIssued"`
	ValidUntil    string     `json:"validUntil"`
	DangerRatings []pointDay `json:"dangerRatings"`
}

type pointDay struct {
	Date struct {
		Value   string `json:"value"`
		Display string `json:"display"`
	} `json:"date"`
	Ratings map[string]struct {
		Rating json.RawMessage `json:"rating"`
	} `json:"ratings"`
}

// Parser turns a forecast document into a snapshot for the provisioned regions.
type Parser struct {
	regions *avalanche.Provisioning
	logger  zerolog.Logger
}

// NewParser creates a parser for the given provisioning.
func NewParser(regions *avalanche.Provisioning, logger zerolog.Logger) *Parser {
	return &Parser{regions: regions, logger: logger}
}

// Parse builds a snapshot from a forecast document.
//
// A bad field only affects its own subregion, which is rated NoRating and
// makes the snapshot incomplete. Only a document that is not a JSON object
// fails the whole parse.
func (p *Parser) Parse(body []byte, fetchedAt time.Time, etag string) (*avalanche.Snapshot, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	if envelope == nil {
		return nil, fmt.Errorf("%w: document is null", ErrEnvelope)
	}

	if raw, ok := envelope["report"]; ok && !p.regions.Has("report") {
		return p.parsePointProduct(raw, fetchedAt, etag)
	}
	return p.parseKeyed(envelope, fetchedAt, etag), nil
}

func (p *Parser) parseKeyed(envelope map[string]json.RawMessage, fetchedAt time.Time, etag string) *avalanche.Snapshot {
	subregions := make(map[string]avalanche.Subregion, p.regions.Len())
	complete := true

	for _, region := range p.regions.Regions() {
		raw, ok := envelope[region.ID]
		if !ok {
			p.logger.Debug().Str("subregion", region.ID).Msg("subregion missing from forecast")
			complete = false
			continue
		}

		sr, err := parseEntry(region, raw)
		if err != nil {
			p.logger.Warn().Err(err).Str("subregion", region.ID).Msg("malformed subregion forecast")
			complete = false
		}
		subregions[region.ID] = sr
	}

	return avalanche.NewSnapshot(fetchedAt, etag, complete, subregions)
}

// parseEntry always returns a usable subregion. The error reports a format
// problem in the entry, in which case the rating falls back to NoRating when
// the rating itself was the problem.
func parseEntry(region avalanche.Region, raw json.RawMessage) (avalanche.Subregion, error) {
	sr := avalanche.Subregion{
		ID:      region.ID,
		Name:    region.Name,
		Polygon: region.Polygon,
		Rating:  avalanche.NoRating,
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] != '{' {
		// Bare rating value instead of an object.
		rating, err := parseRatingValue(raw)
		sr.Rating = rating
		return sr, err
	}

	var entry subregionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return sr, fmt.Errorf("decoding entry: %w", err)
	}

	var errs []error
	rating, err := parseRatingValue(entry.Rating)
	if err != nil {
		errs = append(errs, err)
	}
	sr.Rating = rating
	sr.Summary = entry.Summary

	if sr.ValidFrom, err = parseTime(entry.ValidFrom); err != nil {
		errs = append(errs, fmt.Errorf("validFrom: %w", err))
	}
	if sr.ValidUntil, err = parseTime(entry.ValidUntil); err != nil {
		errs = append(errs, fmt.Errorf("validUntil: %w", err))
	}

	return sr, errors.Join(errs...)
}

func (p *Parser) parsePointProduct(raw json.RawMessage, fetchedAt time.Time, etag string) (*avalanche.Snapshot, error) {
	var report *pointReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("%w: report: %v", ErrEnvelope, err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: report is null", ErrEnvelope)
	}

	validFrom, errFrom := parseTime(report.DateIssued)
	validUntil, errUntil := parseTime(report.ValidUntil)
	timesOK := errFrom == nil && errUntil == nil

	subregions := make(map[string]avalanche.Subregion, p.regions.Len())
	complete := timesOK && len(report.DangerRatings) > 0

	for _, region := range p.regions.Regions() {
		if len(report.DangerRatings) == 0 || region.Band == avalanche.BandNone {
			complete = false
			continue
		}

		today := report.DangerRatings[0]
		band, ok := today.Ratings[string(region.Band)]
		if !ok {
			p.logger.Debug().Str("subregion", region.ID).Str("band", string(region.Band)).Msg("band missing from forecast")
			complete = false
			continue
		}

		rating, err := parseRatingValue(band.Rating)
		if err != nil {
			p.logger.Warn().Err(err).Str("subregion", region.ID).Msg("malformed band rating")
			complete = false
		}

		summary := today.Date.Display
		if summary == "" {
			summary = report.Title
		}

		subregions[region.ID] = avalanche.Subregion{
			ID:         region.ID,
			Name:       region.Name,
			Polygon:    region.Polygon,
			Rating:     rating,
			ValidFrom:  validFrom,
			ValidUntil: validUntil,
			Summary:    summary,
			Outlook:    p.outlook(region, report.DangerRatings[1:]),
		}
	}

	return avalanche.NewSnapshot(fetchedAt, etag, complete, subregions), nil
}

// outlook maps the days after the first onto the region's band. A bad day is
// kept as NoRating; the outlook never affects completeness.
func (p *Parser) outlook(region avalanche.Region, days []pointDay) []avalanche.DayRating {
	if len(days) == 0 {
		return nil
	}

	out := make([]avalanche.DayRating, 0, len(days))
	for i, day := range days {
		d := avalanche.DayRating{Label: day.Date.Display, Rating: avalanche.NoRating}

		date, err := parseTime(day.Date.Value)
		if err != nil {
			p.logger.Debug().Err(err).Str("subregion", region.ID).Int("day", i+1).Msg("malformed outlook date")
		}
		d.Date = date
		if d.Label == "" && !date.IsZero() {
			d.Label = date.UTC().Format("Mon Jan 2")
		}

		if band, ok := day.Ratings[string(region.Band)]; ok {
			if d.Rating, err = parseRatingValue(band.Rating); err != nil {
				p.logger.Debug().Err(err).Str("subregion", region.ID).Int("day", i+1).Msg("malformed outlook rating")
			}
		}
		out = append(out, d)
	}
	return out
}

// parseRatingValue accepts a rating as a string ("considerable", "3"), a
// number (3) or an object with a value field ({"value": "considerable"}).
// A missing or unrecognized rating is NoRating plus an error.
func parseRatingValue(raw json.RawMessage) (avalanche.DangerRating, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return avalanche.NoRating, errors.New("rating missing")
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return avalanche.NoRating, fmt.Errorf("rating: %w", err)
		}
	case '{':
		var obj struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return avalanche.NoRating, fmt.Errorf("rating: %w", err)
		}
		return parseRatingValue(obj.Value)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return avalanche.NoRating, fmt.Errorf("rating: %w", err)
		}
		text = n.String()
	}

	rating, ok := avalanche.ParseRating(text)
	if !ok {
		return avalanche.NoRating, fmt.Errorf("unrecognized rating %q", text)
	}
	return rating, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339 timestamps, local timestamps (read as UTC) and
// plain dates. An empty string is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
