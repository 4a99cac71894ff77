// Package main fits a touch calibration profile from reference points.
//
// Usage:
//
//	avycal -in points.yaml >> provisioning.yaml
//
// The input lists raw controller readings next to the screen pixel the user
// was asked to touch:
//
//	screen: {width: 240, height: 360}
//	points:
//	  - raw: {x: 3890, y: 310}
//	    screen: {x: 20, y: 20}
//
// JSON input works too. The fitted profile is printed as the calibration
// block of a provisioning file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avydash/avydash/internal/config"
	"github.com/avydash/avydash/internal/touch"
)

type pointsFile struct {
	Screen struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"screen"`
	Points []touch.ReferencePair `yaml:"points"`
}

type output struct {
	Calibration touch.Profile `yaml:"calibration"`
}

var errPoorFit = errors.New("calibration error above limit")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "avycal:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("avycal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "reference points file, - for stdin")
	maxRMS := fs.Float64("max-rms", 4, "fail when the fit is worse than this many pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var data []byte
	var err error
	if *in == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(*in)
	}
	if err != nil {
		return fmt.Errorf("reading points: %w", err)
	}

	var pf pointsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parsing points: %w", err)
	}
	if pf.Screen.Width == 0 && pf.Screen.Height == 0 {
		pf.Screen.Width, pf.Screen.Height = config.DefaultScreenWidth, config.DefaultScreenHeight
	}

	fit, err := touch.FitProfile(pf.Points, pf.Screen.Width, pf.Screen.Height)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "fitted %d points, rms error %.2f px\n", len(pf.Points), fit.RMSError)

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(output{Calibration: fit.Profile}); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}

	if fit.RMSError > *maxRMS {
		return fmt.Errorf("%w: %.2f px > %.2f px", errPoorFit, fit.RMSError, *maxRMS)
	}
	return nil
}
