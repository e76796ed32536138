// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/toeirei/shipmaster/internal/testutil"
)

type entry struct {
	name string
	body string
}

func readArchive(t *testing.T, p string) []entry {
	t.Helper()
	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gz)
	var out []entry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar next: %v", err)
		}
		if hdr.Uid != 0 || hdr.Gid != 0 {
			t.Errorf("%s: uid/gid = %d/%d, want 0/0", hdr.Name, hdr.Uid, hdr.Gid)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read %s: %v", hdr.Name, err)
		}
		out = append(out, entry{hdr.Name, string(body)})
	}
	return out
}

func sampleTree(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "build-output")
	testutil.WriteFile(t, src, "main.js", "console.log(1)")
	testutil.WriteFile(t, src, "programs/server/boot.js", "boot")
	testutil.WriteFile(t, src, "README", "readme")
	return src
}

func TestArchiveLayout(t *testing.T) {
	src := sampleTree(t)
	dest := filepath.Join(t.TempDir(), "bundle.tar.gz")

	if err := Archive(context.Background(), src, dest); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	want := []entry{
		{"bundle/", ""},
		{"bundle/README", "readme"},
		{"bundle/main.js", "console.log(1)"},
		{"bundle/programs/", ""},
		{"bundle/programs/server/", ""},
		{"bundle/programs/server/boot.js", "boot"},
	}
	if got := readArchive(t, dest); !reflect.DeepEqual(got, want) {
		t.Errorf("archive entries:\n got %v\nwant %v", got, want)
	}
}

func TestArchiveIsDeterministic(t *testing.T) {
	src := sampleTree(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.tar.gz"), filepath.Join(dir, "b.tar.gz")
	if err := Archive(context.Background(), src, a); err != nil {
		t.Fatal(err)
	}
	if err := Archive(context.Background(), src, b); err != nil {
		t.Fatal(err)
	}
	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if !bytes.Equal(da, db) {
		t.Error("archiving the same tree twice produced different bytes")
	}
}

func TestStartCallsOnDoneOnce(t *testing.T) {
	src := sampleTree(t)
	dest := filepath.Join(t.TempDir(), "bundle.tar.gz")

	var calls atomic.Int32
	job := Start(src, dest, func(err error) {
		calls.Add(1)
		if err != nil {
			t.Errorf("onDone got %v", err)
		}
	})
	if err := job.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	<-job.Done()
	if n := calls.Load(); n != 1 {
		t.Errorf("onDone called %d times, want 1", n)
	}
}

func TestMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "bundle.tar.gz")
	var calls atomic.Int32
	job := Start(filepath.Join(t.TempDir(), "nope"), dest, func(error) { calls.Add(1) })
	if err := job.Wait(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("onDone called %d times, want 1", n)
	}
}

func TestUnwritableDestination(t *testing.T) {
	src := sampleTree(t)
	dest := filepath.Join(t.TempDir(), "missing-dir", "bundle.tar.gz")
	if err := Archive(context.Background(), src, dest); err == nil {
		t.Fatal("expected error for unwritable destination")
	}
}

func TestArchiveCancelled(t *testing.T) {
	src := sampleTree(t)
	dest := filepath.Join(t.TempDir(), "bundle.tar.gz")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Archive(ctx, src, dest); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompletionFirstSignalWins(t *testing.T) {
	job := &Job{done: make(chan struct{})}
	var calls atomic.Int32
	var got error
	c := &completion{job: job, onDone: func(err error) {
		calls.Add(1)
		got = err
	}}

	first := errors.New("encoder failed")
	c.signal(first)
	c.signal(nil)
	c.signal(errors.New("late"))

	if n := calls.Load(); n != 1 {
		t.Errorf("callback fired %d times, want 1", n)
	}
	if got != first || job.Wait() != first {
		t.Errorf("first signal should decide the result, got %v / %v", got, job.Wait())
	}
}
