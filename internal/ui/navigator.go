package ui

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/provider/resilience"
	"github.com/avydash/avydash/internal/touch"
	"github.com/avydash/avydash/pkg/geometry"
)

// HealthReporter lists forecast source health for the settings view.
type HealthReporter interface {
	GetAllHealth() []*resilience.SourceHealth
}

// NavigatorConfig holds configuration for the navigator.
type NavigatorConfig struct {
	Cache    *avalanche.Cache
	Regions  *avalanche.Provisioning
	Resolver *touch.Resolver
	Display  Display

	// Layout defaults to DefaultLayout.
	Layout Layout

	// Health is optional; without it the settings view shows no sources.
	Health HealthReporter

	Logger zerolog.Logger
}

// Navigator owns the active view and the stale banner bit. It performs no I/O
// of its own: state changes mark the screen dirty and Draw issues the draw
// commands. A Navigator is used from a single goroutine.
type Navigator struct {
	cache    *avalanche.Cache
	regions  *avalanche.Provisioning
	resolver *touch.Resolver
	display  Display
	layout   Layout
	health   HealthReporter
	logger   zerolog.Logger

	view   View
	banner bool
	dirty  bool

	// drawn is the subregion the detail view last drew.
	drawn avalanche.Subregion

	transitions int
	draws       int
}

// NewNavigator creates a navigator showing the map. The first frame is
// pending until Draw is called.
func NewNavigator(cfg NavigatorConfig) *Navigator {
	if cfg.Layout.Width <= 0 || cfg.Layout.Height <= 0 {
		cfg.Layout = DefaultLayout()
	}
	n := &Navigator{
		cache:    cfg.Cache,
		regions:  cfg.Regions,
		resolver: cfg.Resolver,
		display:  cfg.Display,
		layout:   cfg.Layout,
		health:   cfg.Health,
		logger:   cfg.Logger,
		view:     Map(),
		dirty:    true,
	}
	n.banner = n.cache.IsStale()
	return n
}

// View returns the active view.
func (n *Navigator) View() View {
	return n.view
}

// StaleBanner reports whether the stale banner is shown.
func (n *Navigator) StaleBanner() bool {
	return n.banner
}

// Dirty reports whether a redraw is pending.
func (n *Navigator) Dirty() bool {
	return n.dirty
}

// Transitions returns the number of view changes so far.
func (n *Navigator) Transitions() int {
	return n.transitions
}

// Draws returns the number of frames drawn so far.
func (n *Navigator) Draws() int {
	return n.draws
}

// HandleTap applies a debounced tap in screen space and reports whether the
// view changed.
func (n *Navigator) HandleTap(tap touch.Tap) bool {
	n.refreshBanner()

	switch n.view.Kind {
	case MapView:
		if n.layout.SettingsHotspot().Contains(tap.Point) {
			return n.transition(Settings())
		}
		id, ok := n.resolver.ResolvePoint(tap.Point)
		if !ok {
			n.logger.Debug().Float64("x", tap.Point.X).Float64("y", tap.Point.Y).Msg("tap outside every region")
			return false
		}
		return n.transition(RegionDetail(id))

	case RegionDetailView:
		if n.layout.BackButton().Contains(tap.Point) || !n.layout.DetailPanel().Contains(tap.Point) {
			return n.transition(Map())
		}
		return false

	case SettingsView:
		return n.transition(Map())

	default:
		return false
	}
}

// HandleCacheEvent applies the outcome of a fetch.
func (n *Navigator) HandleCacheEvent(ev avalanche.CacheChangeEvent) {
	n.refreshBanner()

	if ev != avalanche.Updated {
		return
	}
	switch n.view.Kind {
	case MapView, SettingsView:
		n.dirty = true
	case RegionDetailView:
		if !n.detailSubregion().SameForecast(n.drawn) {
			n.dirty = true
		}
	}
}

// CheckStale re-evaluates the banner without any other event, so the banner
// appears when the forecast ages past the threshold between fetch results.
func (n *Navigator) CheckStale() {
	n.refreshBanner()
}

// HandleFault switches to the terminal error view. Later events are ignored.
func (n *Navigator) HandleFault(err error) {
	if n.view.Kind == ErrorView {
		return
	}
	n.logger.Error().Err(err).Msg("hardware fault")
	n.transition(Error(err.Error()))
}

func (n *Navigator) transition(to View) bool {
	if n.view.Kind == ErrorView || n.view == to {
		return false
	}
	n.logger.Debug().Stringer("from", n.view).Stringer("to", to).Msg("view transition")
	n.view = to
	n.dirty = true
	n.transitions++
	return true
}

func (n *Navigator) refreshBanner() {
	if n.view.Kind == ErrorView {
		return
	}
	stale := n.cache.IsStale()
	if stale != n.banner {
		n.banner = stale
		n.dirty = true
	}
}

// Draw renders the active view if a redraw is pending. A hardware fault from
// the display switches to the error view and is returned; the error view is
// then drawn on the next call, best effort.
func (n *Navigator) Draw() error {
	if !n.dirty {
		return nil
	}

	var err error
	switch n.view.Kind {
	case MapView:
		err = n.drawMap()
	case RegionDetailView:
		err = n.drawDetail()
	case SettingsView:
		err = n.drawSettings()
	case ErrorView:
		err = n.drawError()
	}

	if err != nil {
		if errors.Is(err, touch.ErrHardwareFault) {
			n.HandleFault(err)
			return err
		}
		n.logger.Warn().Err(err).Stringer("view", n.view).Msg("frame dropped")
		return fmt.Errorf("drawing %s: %w", n.view, err)
	}

	n.dirty = false
	n.draws++
	return nil
}

// painter collects the first error of a sequence of draw commands.
type painter struct {
	d   Display
	err error
}

func (p *painter) clear(c Color) {
	if p.err == nil {
		p.err = p.d.Clear(c)
	}
}

func (p *painter) fill(poly geometry.Polygon, c Color) {
	if p.err == nil {
		p.err = p.d.FillPolygon(poly, c)
	}
}

func (p *painter) rect(r geometry.Rect, c Color) {
	p.fill(r.Polygon(), c)
}

func (p *painter) text(s string, at geometry.Point, c Color) {
	if p.err == nil && s != "" {
		p.err = p.d.DrawText(s, at, c)
	}
}

func (n *Navigator) drawMap() error {
	p := &painter{d: n.display}
	p.clear(Black)

	for _, region := range n.regions.Regions() {
		rating := n.cache.RatingFor(region.ID)
		p.fill(region.Polygon, DangerFill(rating))
		label := "-"
		if rating != avalanche.NoRating {
			label = fmt.Sprint(rating.Level())
		}
		p.text(label, textCenter(label, region.Polygon.Centroid()), DangerText(rating))
	}

	hotspot := n.layout.SettingsHotspot()
	p.rect(hotspot, Slate)
	p.text("=", textCenter("=", rectCenter(hotspot)), White)

	n.drawBanner(p)
	return p.err
}

// detailSubregion is what the detail view shows for the selected region.
func (n *Navigator) detailSubregion() avalanche.Subregion {
	id := n.view.RegionID
	if sr, ok := n.cache.Subregion(id); ok {
		return sr
	}
	region, _ := n.regions.Region(id)
	return avalanche.Subregion{ID: id, Name: region.Name, Rating: avalanche.NoRating}
}

func (n *Navigator) drawDetail() error {
	region, _ := n.regions.Region(n.view.RegionID)
	sr := n.detailSubregion()

	panel := n.layout.DetailPanel()
	back := n.layout.BackButton()
	width := panel.Max.X - panel.Min.X

	p := &painter{d: n.display}
	p.clear(Black)
	p.rect(back, Slate)
	p.text("< Back", textCenter("< Back", rectCenter(back)), White)

	y := back.Max.Y + margin
	p.text(fit(sr.Name, width), geometry.Point{X: panel.Min.X, Y: y}, White)
	y += rowPitch
	p.text(fit(sr.Summary, width), geometry.Point{X: panel.Min.X, Y: y}, Gray)
	y += rowPitch

	p.ratingRow(panel.Min.X, y, BandLabel(region.Band), BandColor(region.Band), sr.Rating)
	y += rowPitch + 6

	if !sr.ValidUntil.IsZero() {
		p.text("Until "+sr.ValidUntil.UTC().Format("Jan 2 15:04"), geometry.Point{X: panel.Min.X, Y: y}, Gray)
		y += rowPitch
	}
	if last := n.cache.LastGood(); last != nil {
		p.text("Fetched "+last.FetchedAt.UTC().Format("Jan 2 15:04"), geometry.Point{X: panel.Min.X, Y: y}, Gray)
		y += rowPitch
	}

	if len(sr.Outlook) > 0 {
		y += 6
		p.text("Outlook", geometry.Point{X: panel.Min.X, Y: y}, White)
		y += rowPitch
		for _, day := range sr.Outlook {
			if y+rowHeight > panel.Max.Y {
				break
			}
			p.ratingRow(panel.Min.X, y, fit(day.Label, rowBoxWidth-4), Slate, day.Rating)
			y += rowPitch
		}
	}

	n.drawBanner(p)
	if p.err == nil {
		n.drawn = sr
	}
	return p.err
}

// ratingRow draws a label box followed by a rating box filled with the
// rating's danger color.
func (p *painter) ratingRow(x, y float64, label string, labelColor Color, rating avalanche.DangerRating) {
	labelBox := geometry.Rect{
		Min: geometry.Point{X: x, Y: y},
		Max: geometry.Point{X: x + rowBoxWidth, Y: y + rowHeight},
	}
	ratingBox := geometry.Rect{
		Min: geometry.Point{X: labelBox.Max.X + 2, Y: y},
		Max: geometry.Point{X: labelBox.Max.X + 2 + rowBoxWidth, Y: y + rowHeight},
	}
	labelText := Black
	if labelColor == Slate {
		labelText = White
	}
	p.rect(labelBox, labelColor)
	p.text(label, geometry.Point{X: labelBox.Min.X + 4, Y: y + 2}, labelText)
	p.rect(ratingBox, DangerFill(rating))
	p.text(ratingLabel(rating), geometry.Point{X: ratingBox.Min.X + 4, Y: y + 2}, DangerText(rating))
}

func (n *Navigator) drawSettings() error {
	p := &painter{d: n.display}
	p.clear(Black)

	x := float64(margin)
	y := float64(margin)
	width := n.layout.Width - 2*margin
	p.text("Settings", geometry.Point{X: x, Y: y}, White)
	y += rowPitch + 6

	if n.cache.LastGood() == nil {
		p.text("No forecast yet", geometry.Point{X: x, Y: y}, Gray)
	} else {
		p.text("Age "+formatAge(n.cache.Age()), geometry.Point{X: x, Y: y}, Gray)
	}
	y += rowPitch
	p.text("Stale after "+formatAge(n.cache.StaleThreshold()), geometry.Point{X: x, Y: y}, Gray)
	y += rowPitch + 6

	if n.health != nil {
		for _, h := range n.health.GetAllHealth() {
			c := Green
			switch {
			case h.IsUnhealthy():
				c = DangerFill(avalanche.High)
			case h.IsDegraded():
				c = DangerFill(avalanche.Considerable)
			}
			p.text(fit(h.Name+" "+h.CircuitState.String(), width), geometry.Point{X: x, Y: y}, c)
			y += rowPitch
			if h.LastError != "" {
				p.text(fit(h.LastError, width), geometry.Point{X: x, Y: y}, Gray)
				y += rowPitch
			}
		}
	}

	p.text("Tap to return", geometry.Point{X: x, Y: n.layout.Banner().Min.Y - rowPitch - margin}, Gray)
	n.drawBanner(p)
	return p.err
}

func (n *Navigator) drawError() error {
	p := &painter{d: n.display}
	p.clear(Black)
	p.text("Error", geometry.Point{X: margin, Y: margin}, White)

	perLine := max(int(n.layout.Width-2*margin)/GlyphWidth, 1)
	y := float64(margin + rowPitch)
	for msg := n.view.Message; len(msg) > 0 && y < n.layout.Height-LineHeight; y += rowPitch {
		line := prefix(msg, perLine)
		p.text(line, geometry.Point{X: margin, Y: y}, White)
		msg = msg[len(line):]
	}
	return p.err
}

func (n *Navigator) drawBanner(p *painter) {
	if !n.banner {
		return
	}
	banner := n.layout.Banner()
	p.rect(banner, DangerFill(avalanche.High))
	p.text("FORECAST STALE", textCenter("FORECAST STALE", rectCenter(banner)), White)
}

func rectCenter(r geometry.Rect) geometry.Point {
	return geometry.Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

func ratingLabel(r avalanche.DangerRating) string {
	if r == avalanche.NoRating {
		return r.String()
	}
	return fmt.Sprintf("%d - %s", r.Level(), r)
}

func formatAge(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
