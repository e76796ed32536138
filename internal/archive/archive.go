// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package archive packs a build output directory into a gzip compressed tar
// whose single top-level directory is "bundle/".
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/toeirei/shipmaster/internal/logging"
)

// Root is the directory every entry of the archive lives under.
const Root = "bundle"

// Job is a running archive operation.
type Job struct {
	done chan struct{}
	err  error
}

// Wait blocks until the job has completed and returns its result.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Done is closed when the job has completed.
func (j *Job) Done() <-chan struct{} { return j.done }

// completion delivers the result of a job exactly once. The encoder and the
// sink both signal it; whichever arrives first decides the outcome.
type completion struct {
	once   sync.Once
	job    *Job
	onDone func(error)
}

func (c *completion) signal(err error) {
	c.once.Do(func() {
		c.job.err = err
		close(c.job.done)
		if c.onDone != nil {
			c.onDone(err)
		}
	})
}

// Archive writes sourceDir to dest and waits for the result. Cancelling ctx
// stops the encoder.
func Archive(ctx context.Context, sourceDir, dest string) error {
	job := start(ctx, sourceDir, dest, nil)
	return job.Wait()
}

// Start archives sourceDir to dest in the background. onDone, if non-nil, is
// called exactly once with the result.
func Start(sourceDir, dest string, onDone func(error)) *Job {
	return start(context.Background(), sourceDir, dest, onDone)
}

func start(ctx context.Context, sourceDir, dest string, onDone func(error)) *Job {
	job := &Job{done: make(chan struct{})}
	c := &completion{job: job, onDone: onDone}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		c.signal(fmt.Errorf("create %s: %w", dest, err))
		return job
	}

	pr, pw := io.Pipe()

	// Encoder.
	go func() {
		err := encode(ctx, sourceDir, pw)
		if err != nil {
			pw.CloseWithError(err)
			logging.Debugf("archive encoder for %s failed: %v", sourceDir, err)
			c.signal(err)
			return
		}
		pw.Close()
	}()

	// Sink.
	go func() {
		_, err := io.Copy(out, pr)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		pr.CloseWithError(err)
		if err != nil {
			_ = os.Remove(dest)
			c.signal(fmt.Errorf("write %s: %w", dest, err))
			return
		}
		c.signal(nil)
	}()

	return job
}

// encode writes the tar.gz stream of sourceDir to w.
func encode(ctx context.Context, sourceDir string, w io.Writer) error {
	files, err := collect(sourceDir)
	if err != nil {
		return err
	}

	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(gz)

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addEntry(tw, sourceDir, rel); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// collect returns the slash separated paths below root in sorted order,
// starting with "." for root itself.
func collect(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func addEntry(tw *tar.Writer, root, rel string) error {
	full := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Lstat(full)
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(full); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	name := path.Join(Root, rel)
	if info.IsDir() && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	hdr.Name = name
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	hdr.Format = tar.FormatPAX
	hdr.AccessTime, hdr.ChangeTime = time.Time{}, time.Time{}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}
	return nil
}
