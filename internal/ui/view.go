package ui

import "fmt"

// ViewKind identifies the active screen.
type ViewKind int

const (
	MapView ViewKind = iota
	RegionDetailView
	SettingsView
	ErrorView
)

func (k ViewKind) String() string {
	switch k {
	case MapView:
		return "map"
	case RegionDetailView:
		return "region_detail"
	case SettingsView:
		return "settings"
	case ErrorView:
		return "error"
	default:
		return "unknown"
	}
}

// View is the active screen. RegionID is set only for RegionDetailView and
// Message only for ErrorView.
type View struct {
	Kind     ViewKind
	RegionID string
	Message  string
}

// Map returns the map view.
func Map() View { return View{Kind: MapView} }

// RegionDetail returns the detail view of a subregion.
func RegionDetail(id string) View { return View{Kind: RegionDetailView, RegionID: id} }

// Settings returns the settings view.
func Settings() View { return View{Kind: SettingsView} }

// Error returns the terminal error view.
func Error(msg string) View { return View{Kind: ErrorView, Message: msg} }

func (v View) String() string {
	switch v.Kind {
	case RegionDetailView:
		return fmt.Sprintf("%s(%s)", v.Kind, v.RegionID)
	case ErrorView:
		return fmt.Sprintf("%s(%q)", v.Kind, v.Message)
	default:
		return v.Kind.String()
	}
}
