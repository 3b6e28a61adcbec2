package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-library/library"
)

func TestParseSeedAcceptsComments(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "library.hujson"))
	require.NoError(t, err)

	seed, err := parseSeed(data)
	require.NoError(t, err)
	require.Len(t, seed.Books, 4)
	require.Len(t, seed.Borrowers, 2)
	assert.Equal(t, "Piranesi", seed.Books[2].Title)
	require.NotNil(t, seed.Books[2].Cost)
	assert.InDelta(t, 18.99, *seed.Books[2].Cost, 0.001)
	require.NotNil(t, seed.Borrowers[1].Phone)
	assert.Equal(t, "555-0102", *seed.Borrowers[1].Phone)
}

func TestParseSeedRejectsGarbage(t *testing.T) {
	_, err := parseSeed([]byte(`{"books": [`))
	require.Error(t, err)
}

func TestRunLoadsRowsAndCountsFailures(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "seed.db")
	var out, errOut bytes.Buffer

	code := run(context.Background(), []string{
		"--config-dir", dir,
		"--dsn", dbPath,
		filepath.Join("testdata", "library.hujson"),
	}, &out, &errOut)

	assert.Equal(t, 1, code, "the untitled book fails")
	assert.Contains(t, out.String(), "Successfully imported: 5 rows")
	assert.Contains(t, out.String(), "Errors: 1")
	assert.Contains(t, out.String(), "INVALID - ")

	mgr, err := library.NewLibraryManager(dbPath)
	require.NoError(t, err)
	defer mgr.Close()
	books, err := mgr.ListBooks(context.Background(), library.BookFilter{Author: "le guin"})
	require.NoError(t, err)
	assert.Len(t, books, 2)
	for _, b := range books {
		assert.Equal(t, library.StatusAvailable, b.Status)
	}
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "usage: seed")
}

func TestSeedRowValidation(t *testing.T) {
	v := validator.New()
	neg := -1.0
	badMail := "not-an-email"

	require.NoError(t, v.Struct(seedBook{Title: "Kindred"}))
	require.Error(t, v.Struct(seedBook{Title: "Kindred", Cost: &neg}))
	require.NoError(t, v.Struct(seedBorrower{LastName: "Butler"}))
	require.Error(t, v.Struct(seedBorrower{}))
	require.Error(t, v.Struct(seedBorrower{FirstName: "Octavia", Email: &badMail}))
}
