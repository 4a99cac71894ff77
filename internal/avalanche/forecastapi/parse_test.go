package forecastapi_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/avalanche/forecastapi"
	"github.com/avydash/avydash/pkg/geometry"
)

var fetchedAt = time.Date(2025, 1, 14, 6, 0, 0, 0, time.UTC)

func testRegions(t *testing.T) *avalanche.Provisioning {
	t.Helper()

	rect := func(x0, y0, x1, y1 float64) geometry.Polygon {
		return geometry.Rect{Min: geometry.Point{X: x0, Y: y0}, Max: geometry.Point{X: x1, Y: y1}}.Polygon()
	}
	p, err := avalanche.NewProvisioning([]avalanche.Region{
		{ID: "fernie-alpine", Name: "Fernie Alpine", Polygon: rect(0, 0, 120, 100), Band: avalanche.BandAlpine},
		{ID: "fernie-treeline", Name: "Fernie Treeline", Polygon: rect(120, 0, 240, 100), Band: avalanche.BandTreeline},
		{ID: "fernie-below", Name: "Fernie Below Treeline", Polygon: rect(0, 100, 240, 200), Band: avalanche.BandBelowTreeline},
	})
	require.NoError(t, err)
	return p
}

func parse(t *testing.T, doc string) (*avalanche.Snapshot, error) {
	t.Helper()
	return forecastapi.NewParser(testRegions(t), zerolog.Nop()).Parse([]byte(doc), fetchedAt, `"v1"`)
}

func rating(t *testing.T, snap *avalanche.Snapshot, id string) avalanche.DangerRating {
	t.Helper()
	sr, ok := snap.Subregion(id)
	require.True(t, ok, "subregion %s missing", id)
	return sr.Rating
}

func TestParse_CompleteKeyedDocument(t *testing.T) {
	snap, err := parse(t, `{
		"fernie-alpine":   {"rating": "High", "validFrom": "2025-01-14T00:00:00Z", "validUntil": "2025-01-15T00:00:00Z", "summary": "Tuesday"},
		"fernie-treeline": {"rating": "considerable"},
		"fernie-below":    {"rating": "Moderate", "extra": {"ignored": true}},
		"whistler":        {"rating": "Extreme"}
	}`)
	require.NoError(t, err)

	assert.True(t, snap.Complete)
	assert.Equal(t, fetchedAt, snap.FetchedAt)
	assert.Equal(t, `"v1"`, snap.ETag)
	assert.Equal(t, 3, snap.Len())

	alpine, _ := snap.Subregion("fernie-alpine")
	assert.Equal(t, avalanche.High, alpine.Rating)
	assert.Equal(t, "Fernie Alpine", alpine.Name)
	assert.Equal(t, "Tuesday", alpine.Summary)
	assert.Equal(t, time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC), alpine.ValidFrom)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), alpine.ValidUntil)
	assert.Len(t, alpine.Polygon, 4)

	assert.Equal(t, avalanche.Considerable, rating(t, snap, "fernie-treeline"))
	assert.Equal(t, avalanche.Moderate, rating(t, snap, "fernie-below"))

	_, ok := snap.Subregion("whistler")
	assert.False(t, ok, "unprovisioned ids are dropped")
}

func TestParse_PartialDocument(t *testing.T) {
	snap, err := parse(t, `{"fernie-alpine": {"rating":"Considerable","validFrom":"2025-01-14T00:00:00Z","validUntil":"2025-01-15T00:00:00Z"}}`)
	require.NoError(t, err)

	assert.False(t, snap.Complete)
	assert.Equal(t, avalanche.Considerable, rating(t, snap, "fernie-alpine"))
	_, ok := snap.Subregion("fernie-treeline")
	assert.False(t, ok)
}

func TestParse_FieldErrorsStayLocal(t *testing.T) {
	tests := []struct {
		name   string
		entry  string
		rating avalanche.DangerRating
	}{
		{"unrecognized rating", `{"rating": "spicy"}`, avalanche.NoRating},
		{"missing rating", `{"validFrom": "2025-01-14"}`, avalanche.NoRating},
		{"null rating", `{"rating": null}`, avalanche.NoRating},
		{"rating wrong type", `{"rating": true}`, avalanche.NoRating},
		{"bad timestamp keeps rating", `{"rating": "High", "validFrom": "yesterday"}`, avalanche.High},
		{"entry is an array", `[1, 2]`, avalanche.NoRating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := parse(t, `{
				"fernie-alpine": `+tt.entry+`,
				"fernie-treeline": {"rating": "Low"},
				"fernie-below": {"rating": "Low"}
			}`)
			require.NoError(t, err)

			assert.False(t, snap.Complete)
			assert.Equal(t, tt.rating, rating(t, snap, "fernie-alpine"))
			assert.Equal(t, avalanche.Low, rating(t, snap, "fernie-treeline"))
		})
	}
}

func TestParse_RatingForms(t *testing.T) {
	snap, err := parse(t, `{
		"fernie-alpine": {"rating": 4},
		"fernie-treeline": {"rating": {"value": "considerable", "display": "3 - Considerable"}},
		"fernie-below": "2:moderate"
	}`)
	require.NoError(t, err)

	assert.True(t, snap.Complete)
	assert.Equal(t, avalanche.High, rating(t, snap, "fernie-alpine"))
	assert.Equal(t, avalanche.Considerable, rating(t, snap, "fernie-treeline"))
	assert.Equal(t, avalanche.Moderate, rating(t, snap, "fernie-below"))
}

func TestParse_ExplicitNoRatingIsComplete(t *testing.T) {
	snap, err := parse(t, `{
		"fernie-alpine": {"rating": "noRating"},
		"fernie-treeline": {"rating": "noForecast"},
		"fernie-below": {"rating": "Low", "validFrom": "2025-01-14"}
	}`)
	require.NoError(t, err)

	assert.True(t, snap.Complete)
	assert.Equal(t, avalanche.NoRating, rating(t, snap, "fernie-alpine"))
}

func TestParse_UnreadableEnvelope(t *testing.T) {
	for _, doc := range []string{`<html>502 Bad Gateway</html>`, `[]`, `null`, `"fernie"`, `{"fernie-alpine":`} {
		t.Run(doc, func(t *testing.T) {
			_, err := parse(t, doc)
			assert.ErrorIs(t, err, forecastapi.ErrEnvelope)
		})
	}
}

const pointProductDoc = `{
	"id": "abc",
	"report": {
		"title": "Lizard Range and Flathead",
		"dateIssued": "2025-01-13T16:00:00Z",
		"validUntil": "2025-01-14T16:00:00Z",
		"dangerRatings": [
			{
				"date": {"value": "2025-01-13T16:00:00Z", "display": "Monday"},
				"ratings": {
					"alp": {"display": "Alpine", "rating": {"value": "considerable", "display": "3 - Considerable"}},
					"tln": {"display": "Treeline", "rating": {"value": "moderate", "display": "2 - Moderate"}},
					"btl": {"display": "Below Treeline", "rating": {"value": "low", "display": "1 - Low"}}
				}
			},
			{
				"date": {"value": "2025-01-14T16:00:00Z", "display": "Tuesday"},
				"ratings": {
					"alp": {"rating": {"value": "high"}},
					"tln": {"rating": {"value": "high"}},
					"btl": {"rating": {"value": "high"}}
				}
			}
		]
	}
}`

func TestParse_PointProduct(t *testing.T) {
	snap, err := parse(t, pointProductDoc)
	require.NoError(t, err)

	assert.True(t, snap.Complete)
	assert.Equal(t, avalanche.Considerable, rating(t, snap, "fernie-alpine"))
	assert.Equal(t, avalanche.Moderate, rating(t, snap, "fernie-treeline"))
	assert.Equal(t, avalanche.Low, rating(t, snap, "fernie-below"))

	alpine, _ := snap.Subregion("fernie-alpine")
	assert.Equal(t, "Monday", alpine.Summary)
	assert.Equal(t, time.Date(2025, 1, 13, 16, 0, 0, 0, time.UTC), alpine.ValidFrom)
	assert.Equal(t, time.Date(2025, 1, 14, 16, 0, 0, 0, time.UTC), alpine.ValidUntil)
}

func TestParse_PointProductMissingBand(t *testing.T) {
	snap, err := parse(t, `{"report": {"dangerRatings": [{"ratings": {"alp": {"rating": {"value": "high"}}}}]}}`)
	require.NoError(t, err)

	assert.False(t, snap.Complete)
	assert.Equal(t, avalanche.High, rating(t, snap, "fernie-alpine"))
	assert.Equal(t, 1, snap.Len())
}

func TestParse_PointProductNoDays(t *testing.T) {
	snap, err := parse(t, `{"report": {"dangerRatings": []}}`)
	require.NoError(t, err)

	assert.False(t, snap.Complete)
	assert.Zero(t, snap.Len())
}

func TestParse_PointProductWithUnbandedRegion(t *testing.T) {
	p, err := avalanche.NewProvisioning([]avalanche.Region{
		{ID: "alpine", Polygon: geometry.Rect{Max: geometry.Point{X: 1, Y: 1}}.Polygon(), Band: avalanche.BandAlpine},
		{ID: "town", Polygon: geometry.Rect{Min: geometry.Point{X: 1, Y: 1}, Max: geometry.Point{X: 2, Y: 2}}.Polygon()},
	})
	require.NoError(t, err)

	snap, err := forecastapi.NewParser(p, zerolog.Nop()).Parse([]byte(pointProductDoc), fetchedAt, "")
	require.NoError(t, err)

	assert.False(t, snap.Complete)
	assert.Equal(t, 1, snap.Len())
}

func TestParse_PointProductOutlook(t *testing.T) {
	snap, err := parse(t, `{"report": {
		"dateIssued": "2025-01-13T16:00:00Z",
		"validUntil": "2025-01-14T16:00:00Z",
		"dangerRatings": [
			{"date": {"value": "2025-01-13T16:00:00Z", "display": "Monday"},
			 "ratings": {"alp": {"rating": {"value": "considerable"}}, "tln": {"rating": {"value": "moderate"}}, "btl": {"rating": {"value": "low"}}}},
			{"date": {"value": "2025-01-14T16:00:00Z", "display": "Tuesday"},
			 "ratings": {"alp": {"rating": {"value": "high"}}, "tln": {"rating": {"value": "considerable"}}, "btl": {"rating": {"value": "moderate"}}}},
			{"date": {"value": "2025-01-15T16:00:00Z"},
			 "ratings": {"alp": {"rating": {"value": "spicy"}}, "tln": {"rating": {"value": "moderate"}}}}
		]
	}}`)
	require.NoError(t, err)
	assert.True(t, snap.Complete, "outlook problems do not affect completeness")

	alpine, _ := snap.Subregion("fernie-alpine")
	assert.Equal(t, avalanche.Considerable, alpine.Rating)
	assert.Equal(t, []avalanche.DayRating{
		{Date: time.Date(2025, 1, 14, 16, 0, 0, 0, time.UTC), Label: "Tuesday", Rating: avalanche.High},
		{Date: time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC), Label: "Wed Jan 15", Rating: avalanche.NoRating},
	}, alpine.Outlook)

	treeline, _ := snap.Subregion("fernie-treeline")
	require.Len(t, treeline.Outlook, 2)
	assert.Equal(t, avalanche.Considerable, treeline.Outlook[0].Rating)
	assert.Equal(t, avalanche.Moderate, treeline.Outlook[1].Rating)

	below, _ := snap.Subregion("fernie-below")
	require.Len(t, below.Outlook, 2)
	assert.Equal(t, avalanche.Moderate, below.Outlook[0].Rating)
	assert.Equal(t, avalanche.NoRating, below.Outlook[1].Rating, "band missing from a later day")
}

func TestParse_KeyedDocumentHasNoOutlook(t *testing.T) {
	snap, err := parse(t, `{"fernie-alpine": {"rating": "Low"}}`)
	require.NoError(t, err)

	alpine, _ := snap.Subregion("fernie-alpine")
	assert.Nil(t, alpine.Outlook)
}
