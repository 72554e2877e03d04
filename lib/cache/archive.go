// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/assemble/lib/component"
)

// ArchivePath returns where [Cache.Archive] writes comp's install tree.
func (c *Cache) ArchivePath(comp *component.Component) (string, error) {
	key, err := KeyFor(comp)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, key+".tar.zst"), nil
}

// Archive writes a zstd-compressed tarball of comp.Install next to the
// cache marker. Entries are stored relative to the install tree in
// lexical walk order. The archive is written to a temporary file and
// renamed into place, so a partial archive is never visible.
func (c *Cache) Archive(comp *component.Component) (string, error) {
	if comp.Install == "" {
		return "", fmt.Errorf("%s: install directory is not set", comp.Name)
	}
	path, err := c.ArchivePath(comp)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.root, 0755); err != nil {
		return "", fmt.Errorf("creating cache root %s: %w", c.root, err)
	}

	temporary, err := os.CreateTemp(c.root, ".archive-*")
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer os.Remove(temporary.Name())

	if err := writeArchive(temporary, comp.Install); err != nil {
		temporary.Close()
		return "", fmt.Errorf("archiving %s: %w", comp.Install, err)
	}
	if err := temporary.Close(); err != nil {
		return "", fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return "", fmt.Errorf("renaming archive into place: %w", err)
	}

	c.logger.Info("archived install tree", "component", comp.Name, "path", path)
	return path, nil
}

func writeArchive(w io.Writer, root string) error {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	archive := tar.NewWriter(encoder)

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relative == "." {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}

		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relative)
		if info.IsDir() {
			header.Name += "/"
		}
		if err := archive.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(archive, file)
		return err
	})
	if walkErr != nil {
		archive.Close()
		encoder.Close()
		return walkErr
	}

	if err := archive.Close(); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}
