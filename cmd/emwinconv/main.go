package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/bodgit/emwin"
	"github.com/bodgit/emwin/emit"
	"github.com/bodgit/emwin/rgb565"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func parseSize(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size %q, expected WIDTHxHEIGHT", s)
	}
	var dims [2]int
	for i, p := range parts {
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("invalid size %q, expected WIDTHxHEIGHT", s)
		}
		dims[i] = n
	}
	return dims[0], dims[1], nil
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func options(c *cli.Context) (emwin.Options, error) {
	layout, err := rgb565.ParseLayout(c.String("layout"))
	if err != nil {
		return emwin.Options{}, err
	}

	width, height, err := parseSize(c.String("resize"))
	if err != nil {
		return emwin.Options{}, err
	}

	opts := emwin.Options{
		Layout:   layout,
		Storage:  c.String("storage"),
		Colors:   c.Int("colors"),
		Width:    width,
		Height:   height,
		Compress: c.Bool("zstd"),
		Workers:  c.Int("workers"),
	}

	return opts, opts.Validate()
}

// newConverter builds a Converter from the global flags. The returned
// function closes the catalog, if one was opened.
func newConverter(c *cli.Context) (*emwin.Converter, func() error, error) {
	opts, err := options(c)
	if err != nil {
		return nil, nil, err
	}

	var db *emwin.Catalog
	closer := func() error { return nil }
	if file := c.String("db"); file != "" {
		if db, err = emwin.NewCatalog(file); err != nil {
			return nil, nil, err
		}
		closer = db.Close
	}

	return emwin.New(db, newLogger(c), opts), closer, nil
}

func convert(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowAppHelpAndExit(c, 1)
	}

	conv, closer, err := newConverter(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closer()

	for _, file := range c.Args().Slice() {
		result, err := conv.Convert(file)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		if result.Skipped {
			fmt.Fprintf(c.App.Writer, "%s is up to date\n", file)
			continue
		}
		fmt.Fprintf(c.App.Writer, "Generated %s, %s and %s (%dx%d, bm%s)\n", result.Source, result.Raw, result.Diagnostic, result.Width, result.Height, result.Symbol)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "emwinconv"
	app.Usage = "Convert RGBA images into emWin A565 bitmaps"
	app.Version = "1.0.0"
	app.ArgsUsage = "FILE..."

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "layout",
			EnvVars: []string{"EMWIN_LAYOUT"},
			Value:   rgb565.Swapped.String(),
			Usage:   "color word layout, swapped (BGR) or standard (RGB)",
		},
		&cli.StringFlag{
			Name:  "storage",
			Value: emit.DefaultStorage,
			Usage: "storage qualifier for the pixel array, \"" + emit.NoStorage + "\" to omit",
		},
		&cli.IntFlag{
			Name:  "colors",
			Usage: "reduce the image to this many colors first",
		},
		&cli.StringFlag{
			Name:  "resize",
			Usage: "resize the image first, as WIDTHxHEIGHT; either may be omitted to keep the aspect ratio",
		},
		&cli.BoolFlag{
			Name:  "zstd",
			Usage: "also write a zstd compressed raw file",
		},
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"EMWIN_DB"},
			Usage:   "path to conversion catalog, unchanged images are skipped",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "number of concurrent conversions when scanning",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Action = convert

	app.Commands = []*cli.Command{
		{
			Name:        "convert",
			Usage:       "Convert one or more images",
			Description: "Writes FILE.c, FILE.raw and FILE.txt next to each image.",
			ArgsUsage:   "FILE...",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}
				return convert(c)
			},
		},
		{
			Name:        "scan",
			Usage:       "Convert every image beneath a directory",
			Description: "",
			ArgsUsage:   "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				conv, closer, err := newConverter(c)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer closer()

				if err := conv.Scan(c.Args().First()); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "list",
			Usage:       "List the conversions recorded in the catalog",
			Description: "",
			Action: func(c *cli.Context) error {
				file := c.String("db")
				if file == "" {
					return cli.NewExitError("no catalog, use --db or EMWIN_DB", 1)
				}

				db, err := emwin.NewCatalog(file)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer db.Close()

				records, err := db.List()
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				for _, r := range records {
					fmt.Fprintf(c.App.Writer, "%s\t%dx%d\t%s\tbm%s\t%s\n", r.Source, r.Width, r.Height, r.Layout, r.Symbol, r.RawSHA1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
