package main

import (
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/config"
	"github.com/banshee-data/isobath/internal/csvimport"
	"github.com/banshee-data/isobath/internal/fsutil"
	"github.com/banshee-data/isobath/internal/render"
)

// files backs every path read or written by generate.
var files fsutil.FileSystem = fsutil.OSFileSystem{}

type generateOptions struct {
	engineFlags
	csvPath    string
	delimiter  string
	noHeader   bool
	levels     []float64
	configPath string
	outPath    string
	pngPath    string
	htmlPath   string
	verbose    bool
}

func newGenerateCmd() *cobra.Command {
	o := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Contour a CSV of soundings and write GeoJSON",
		Long: `Reads x,y,depth soundings from a CSV file (or stdin with --csv -),
contours them and writes a GeoJSON FeatureCollection with one feature per
level. Column names lon/lat, longitude/latitude and depth_value/kedalaman
are recognised.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, o)
		},
	}
	fs := cmd.Flags()
	o.register(fs)
	fs.StringVar(&o.csvPath, "csv", "", "input CSV path, - for stdin")
	fs.StringVar(&o.delimiter, "delimiter", ",", "CSV field delimiter")
	fs.BoolVar(&o.noHeader, "no-header", false, "input has no header row; columns are x,y,depth")
	fs.Float64SliceVar(&o.levels, "levels", nil, "contour exactly these depths")
	fs.StringVar(&o.configPath, "config", "", "contour config JSON")
	fs.StringVarP(&o.outPath, "out", "o", "-", "GeoJSON output path, - for stdout")
	fs.StringVar(&o.pngPath, "png", "", "also draw a PNG plot to this path")
	fs.StringVar(&o.htmlPath, "html", "", "also write an interactive HTML chart to this path")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log engine diagnostics to stderr")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runGenerate(cmd *cobra.Command, o *generateOptions) error {
	cfg := config.DefaultContourConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadContourConfig(o.configPath); err != nil {
			return err
		}
	}
	opts := cfg.EngineOptions()
	if o.interval != 0 {
		opts.Interval = o.interval
	}
	if o.grid != 0 {
		opts.GridResolution = o.grid
	}
	opts.Levels = o.levels

	if o.verbose {
		bathy.SetLogWriters(cmd.ErrOrStderr(), cmd.ErrOrStderr(), nil)
		defer bathy.SetLogWriters(nil, nil, nil)
	}

	raw, err := readCSV(cmd.InOrStdin(), o)
	if err != nil {
		return err
	}
	samples, err := bathy.ParseSamples(raw)
	if err != nil {
		return err
	}
	res, err := bathy.Generate(samples, opts)
	if err != nil {
		return err
	}

	if err := writeTo(cmd.OutOrStdout(), o.outPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.FeatureCollection())
	}); err != nil {
		return err
	}

	set := render.FromResult(o.csvPath, res, samples)
	if o.pngPath != "" {
		if err := writeTo(nil, o.pngPath, func(w io.Writer) error { return render.PNG(w, set, 0, 0) }); err != nil {
			return err
		}
	}
	if o.htmlPath != "" {
		if err := writeTo(nil, o.htmlPath, func(w io.Writer) error { return render.HTML(w, set) }); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%s levels %v: %d lines from %d samples (%d discarded)",
		res.Levels.Mode, res.Levels.Levels, res.TotalLines(), res.PointCount, res.Discarded)
	if res.UsedFallback {
		summary += ", approximate fallback ring"
	}
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), summary)
	return nil
}

func readCSV(stdin io.Reader, o *generateOptions) ([]bathy.RawSample, error) {
	if utf8.RuneCountInString(o.delimiter) != 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", o.delimiter)
	}
	comma, _ := utf8.DecodeRuneInString(o.delimiter)

	in := stdin
	if o.csvPath != "-" {
		f, err := files.Open(o.csvPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	return csvimport.NewReader(in, csvimport.WithComma(comma), csvimport.WithHeader(!o.noHeader)).ReadAll()
}

// writeTo runs fn against stdout for "-" or against a created file.
func writeTo(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "-" && stdout != nil {
		return fn(stdout)
	}
	f, err := files.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
