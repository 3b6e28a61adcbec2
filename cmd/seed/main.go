// Command seed loads books and borrowers from a JSON-with-comments file into
// the configured library store.
//
//	seed [--config-dir DIR] [--driver NAME] [--dsn DSN] FILE
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"home-library/internal/config"
	"home-library/library"
)

type seedBook struct {
	Title  string   `json:"title" validate:"required"`
	Author string   `json:"author"`
	ISBN   *string  `json:"isbn" validate:"omitempty,min=10,max=17"`
	Cost   *float64 `json:"cost" validate:"omitempty,gte=0"`
}

type seedBorrower struct {
	FirstName    string  `json:"first_name" validate:"required_without=LastName"`
	LastName     string  `json:"last_name"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Phone        *string `json:"phone"`
	Relationship *string `json:"relationship"`
	Address      *string `json:"address"`
}

type seedFile struct {
	Books     []seedBook     `json:"books"`
	Borrowers []seedBorrower `json:"borrowers"`
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configDir := fs.String("config-dir", "", "configuration directory")
	driver := fs.String("driver", "", "database driver: sqlite3, sqlite, pgx or postgres")
	dsn := fs.String("dsn", "", "database file or connection URL")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: seed [--config-dir DIR] [--driver NAME] [--dsn DSN] FILE")
		return 1
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "Error reading seed file: %v\n", err)
		return 1
	}
	seed, err := parseSeed(data)
	if err != nil {
		fmt.Fprintf(errOut, "Error parsing %s: %v\n", fs.Arg(0), err)
		return 1
	}

	mgr, err := openStore(ctx, *configDir, *driver, *dsn)
	if err != nil {
		fmt.Fprintf(errOut, "Error opening database: %v\n", err)
		return 2
	}
	defer mgr.Close()

	if failed := load(ctx, mgr, seed, out); failed > 0 {
		return 1
	}
	return 0
}

// parseSeed accepts standard JSON plus comments and trailing commas.
func parseSeed(data []byte) (seedFile, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return seedFile{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var seed seedFile
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(standardized, &seed); err != nil {
		return seedFile{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return seed, nil
}

func openStore(ctx context.Context, configDir, driver, dsn string) (*library.LibraryManager, error) {
	dir, err := config.ResolveDir(configDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := cfg.ResolveDSN()
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	return library.OpenLibraryManager(ctx, cfg.Database.Driver, target, cfg.LibraryOptions(logger)...)
}

// load inserts every row, reporting each one, and returns the failure count.
// Rows failing validation are reported and skipped without touching the store.
func load(ctx context.Context, mgr *library.LibraryManager, seed seedFile, out io.Writer) int {
	var ok, failed int
	v := validator.New()

	for _, b := range seed.Books {
		fmt.Fprintf(out, "Importing book: %s by %s... ", b.Title, b.Author)
		if err := v.Struct(b); err != nil {
			fmt.Fprintf(out, "INVALID - %v\n", err)
			failed++
			continue
		}
		book, err := mgr.CreateBook(ctx, library.NewBook{Title: b.Title, Author: b.Author, ISBN: b.ISBN, Cost: b.Cost})
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", book.ID)
		ok++
	}

	for _, p := range seed.Borrowers {
		name := strings.TrimSpace(p.FirstName + " " + p.LastName)
		fmt.Fprintf(out, "Importing borrower: %s... ", name)
		if err := v.Struct(p); err != nil {
			fmt.Fprintf(out, "INVALID - %v\n", err)
			failed++
			continue
		}
		borrower, err := mgr.CreateBorrower(ctx, library.NewBorrower{
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Email:        p.Email,
			Phone:        p.Phone,
			Relationship: p.Relationship,
			Address:      p.Address,
		})
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", borrower.ID)
		ok++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d rows\n", ok)
	fmt.Fprintf(out, "Errors: %d\n", failed)
	return failed
}
