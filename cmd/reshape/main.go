// Command reshape wandelt eine lokale Rohdatei (Wide-Format) in das Long-Format um,
// ohne Datenbank und ohne Object Store.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"weightloss-ingest/services"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reshape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "wide CSV input file (required)")
	out := fs.String("out", "", "output file (default stdout)")
	upload := fs.String("upload-date", "", "upload timestamp, RFC3339 or YYYY-MM-DD (default file modification time)")
	lenient := fs.Bool("lenient", false, "accept files without the \"Number of Samples\" column")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *in == "" {
		fmt.Fprintln(stderr, "reshape: -in is required")
		fs.Usage()
		return 2
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(stderr, "reshape: %v\n", err)
			return 1
		}
		defer f.Close()
		w = f
	}
	if err := run(*in, *upload, *lenient, w); err != nil {
		fmt.Fprintf(stderr, "reshape: %v\n", err)
		return 1
	}
	return 0
}

func run(path, upload string, lenient bool, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	uploadDate, err := resolveUploadDate(path, upload)
	if err != nil {
		return err
	}

	table, err := services.ParseTable(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	v := services.NewValidator()
	if lenient {
		v.RequiredColumns = []string{services.ColSampleNumber, services.ColVariety, services.ColFormulation}
	}
	code, err := v.Validate(table.Header, path)
	if err != nil {
		return err
	}
	obs, err := services.Reshape(table, services.ReshapeInput{
		Filename:   services.BaseName(path),
		UploadDate: uploadDate,
		FileCode:   code,
	})
	if err != nil {
		return err
	}
	return services.WriteLongCSV(w, obs)
}

func resolveUploadDate(path, raw string) (time.Time, error) {
	if raw == "" {
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}, err
		}
		return info.ModTime().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("invalid -upload-date " + raw)
}
