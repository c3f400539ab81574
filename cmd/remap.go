package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/gary/internal/isbn"
	"github.com/lepinkainen/gary/internal/isbndb"
	"github.com/lepinkainen/gary/internal/store"
)

// RemapCmd groups the remap subcommands.
type RemapCmd struct {
	Add    RemapAddCmd    `cmd:"" help:"Add or replace an alternate ISBN for a book"`
	Drop   RemapDropCmd   `cmd:"" help:"Remove the alternate ISBN at a priority"`
	List   RemapListCmd   `cmd:"" help:"List all alternate ISBNs"`
	Import RemapImportCmd `cmd:"" help:"Add alternate ISBNs from a YAML file"`
	Export RemapExportCmd `cmd:"" help:"Write all alternate ISBNs as YAML"`
}

// RemapAddCmd sets the alternate ISBN at (book, priority).
type RemapAddCmd struct {
	ISBN      string `arg:"" help:"ISBN of the book"`
	Alternate string `arg:"" help:"ISBN to query instead"`
	Priority  int    `short:"p" help:"Higher priorities are tried first" default:"0"`
}

// RemapDropCmd removes the alternate ISBN at (book, priority).
type RemapDropCmd struct {
	ISBN     string `arg:"" help:"ISBN of the book"`
	Priority int    `arg:"" help:"Priority of the remap to remove"`
}

// RemapListCmd prints every remap as a table.
type RemapListCmd struct{}

// RemapImportCmd reads remaps from YAML.
type RemapImportCmd struct {
	Input string `short:"f" help:"YAML file to read (default stdin)" type:"existingfile"`
}

// RemapExportCmd writes remaps as YAML.
type RemapExportCmd struct {
	Output string `short:"o" help:"File to write (default stdout)" type:"path"`
}

// remapDoc is the YAML form of a remap.
type remapDoc struct {
	ISBN      string `yaml:"isbn"`
	Priority  int    `yaml:"priority"`
	Alternate string `yaml:"alternate"`
}

// CustomCmd groups the custom record subcommands.
type CustomCmd struct {
	Set  CustomSetCmd  `cmd:"" help:"Store a hand-written payload for a book"`
	Drop CustomDropCmd `cmd:"" help:"Remove the hand-written payload of a book"`
}

// CustomSetCmd stores a custom payload.
type CustomSetCmd struct {
	ISBN string `arg:"" help:"ISBN of the book"`
	File string `arg:"" help:"JSON file with the payload, or - for stdin"`
}

// CustomDropCmd removes a custom payload.
type CustomDropCmd struct {
	ISBN string `arg:"" help:"ISBN of the book"`
}

// addRemap validates both ISBNs and stores the remap.
func addRemap(a *app, s *store.Store, bookISBN, alternate string, priority int) error {
	b, err := a.findBook(s, bookISBN)
	if err != nil {
		return err
	}

	alt, err := isbn.ToISBN13(alternate)
	if err != nil {
		return err
	}
	if !isbn.IsISBN13(alt) {
		return fmt.Errorf("%w: %q", isbn.ErrInvalid, alternate)
	}
	if alt == b.ISBN13 {
		return fmt.Errorf("alternate %s is the book's own ISBN", alt)
	}

	if err := s.SetRemap(a.ctx, b.ID, priority, alt); err != nil {
		return err
	}
	slog.Debug("Remap set", "isbn", b.ISBN13, "priority", priority, "alternate", alt)
	return nil
}

func (c *RemapAddCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	return addRemap(a, s, c.ISBN, c.Alternate, c.Priority)
}

func (c *RemapDropCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	b, err := a.findBook(s, c.ISBN)
	if err != nil {
		return err
	}
	if err := s.DropRemap(a.ctx, b.ID, c.Priority); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no remap at priority %d for %s", c.Priority, b.ISBN13)
		}
		return err
	}
	return nil
}

func (c *RemapListCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	entries, err := s.ListRemaps(a.ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.BookISBN13, strconv.Itoa(e.Priority), e.ISBN13})
	}
	_, err = fmt.Fprintln(a.stdout, renderTable(
		[]string{"ISBN", "Priority", "Alternate"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft}))
	return err
}

func (c *RemapImportCmd) Run(a *app) error {
	var r io.Reader = a.stdin
	if c.Input != "" {
		f, err := os.Open(c.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var docs []remapDoc
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse remaps: %w", err)
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}

	var added, skipped int
	for _, d := range docs {
		if err := addRemap(a, s, d.ISBN, d.Alternate, d.Priority); err != nil {
			if errors.Is(err, isbn.ErrInvalid) || errors.Is(err, errUnknownBook) {
				slog.Warn("Skipping remap", "isbn", d.ISBN, "alternate", d.Alternate, "error", err)
				skipped++
				continue
			}
			return err
		}
		added++
	}
	_, err = fmt.Fprintf(a.stdout, "%d remaps imported, %d skipped\n", added, skipped)
	return err
}

func (c *RemapExportCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	entries, err := s.ListRemaps(a.ctx)
	if err != nil {
		return err
	}

	docs := make([]remapDoc, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, remapDoc{ISBN: e.BookISBN13, Priority: e.Priority, Alternate: e.ISBN13})
	}
	out, err := yaml.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode remaps: %w", err)
	}

	if c.Output == "" {
		_, err = a.stdout.Write(out)
		return err
	}
	return os.WriteFile(c.Output, out, 0o644)
}

func (c *CustomSetCmd) Run(a *app) error {
	var (
		data []byte
		err  error
	)
	if c.File == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(c.File)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if err := isbndb.ValidatePayload(string(data)); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	b, err := a.findBook(s, c.ISBN)
	if err != nil {
		return err
	}
	return s.SetCustom(a.ctx, b.ID, string(data))
}

func (c *CustomDropCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	b, err := a.findBook(s, c.ISBN)
	if err != nil {
		return err
	}
	if err := s.DropCustom(a.ctx, b.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no custom record for %s", b.ISBN13)
		}
		return err
	}
	return nil
}
