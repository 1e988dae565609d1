package emwin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Only formats that can carry 8-bit RGBA are worth trying
var scanExtensions = map[string]struct{}{
	".png":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

func (c *Converter) findImages(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		// Artifact base names already handed out, mapped to the image that claimed them
		seen := make(map[string]string)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' && file != base {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Ignore anything that isn't a normal file
			if !info.Mode().IsRegular() {
				return nil
			}

			if _, ok := scanExtensions[strings.ToLower(filepath.Ext(file))]; !ok {
				return nil
			}

			// Two images differing only by extension would write the same artifacts
			name := strings.TrimSuffix(file, filepath.Ext(file))
			if prev, ok := seen[name]; ok {
				c.logger.Printf("Ignoring \"%s\": artifacts would overwrite those of \"%s\"\n", file, prev)
				return nil
			}
			seen[name] = file

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (c *Converter) imageWorker(ctx context.Context, in <-chan string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if _, err := c.Convert(file); err != nil {
				var e *Error
				if errors.As(err, &e) && e.Kind == UnsupportedFormat {
					c.logger.Printf("Ignoring \"%s\": %v\n", file, e.Err)
					continue
				}
				errc <- err
				return
			}
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan walks the directory tree rooted at path converting every image found.
// Images that are not 8-bit RGBA are logged and skipped; any other failure
// stops the scan.
func (c *Converter) Scan(path string) error {
	if err := c.opts.Validate(); err != nil {
		return err
	}

	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := c.findImages(ctx, dir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < c.opts.workers(); i++ {
		errc, err := c.imageWorker(ctx, files)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(errcList...)
}
