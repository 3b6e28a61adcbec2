//go:build mage

// Package main provides build targets for the library CLI using Mage.
//
// Usage:
//
//	mage build              Compile library and seed to bin/
//	mage test:all           Run all tests
//	mage test:postgres      Run tests including PostgreSQL (needs LIBRARY_TEST_POSTGRES_DSN)
//	mage test:race          Run all tests with the race detector
//	mage lint               Run go vet and golangci-lint
//	mage clean              Remove build artifacts
//	mage install            Install library to GOPATH/bin
package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "library"
	binaryDir  = "bin"
	versionVar = "home-library/internal/cli.Version"
)

// Build compiles the library and seed binaries to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	ldflags := "-X " + versionVar + "=" + version()
	if err := sh.RunV(binGo, "build", "-ldflags", ldflags, "-o", filepath.Join(binaryDir, binaryName), "."); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-o", filepath.Join(binaryDir, "seed"), "./cmd/seed")
}

// version is the git describe output, or "dev" outside a checkout.
func version() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || v == "" {
		return "dev"
	}
	return v
}

// Test groups test targets.
type Test mg.Namespace

// All runs every package's tests. PostgreSQL tests skip without a DSN.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs all tests with the race detector, which the concurrent loan
// tests rely on.
func (Test) Race() error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, binGo, "test", "-race", "./...")
}

// Postgres runs the store tests against LIBRARY_TEST_POSTGRES_DSN.
func (Test) Postgres() error {
	if os.Getenv("LIBRARY_TEST_POSTGRES_DSN") == "" {
		return errors.New("LIBRARY_TEST_POSTGRES_DSN is not set")
	}
	return sh.RunV(binGo, "test", "-run", "Postgres", "-v", "./library/...")
}

// Lint runs go vet, then golangci-lint when it is installed.
func Lint() error {
	if err := sh.RunV(binGo, "vet", "./..."); err != nil {
		return err
	}
	if _, err := sh.Output("golangci-lint", "version"); err != nil {
		return nil
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), filepath.Join(binaryDir, binaryName))
}
