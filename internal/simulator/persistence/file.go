// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/cnet-link/internal/simulator/model"
)

// FileStorage keeps the device memory in a plain file, rewritten and synced
// after every write. The file holds the areas in model.Areas order, each
// model.AreaWords big-endian words long.
type FileStorage struct {
	path string
	file *os.File
	data []byte
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Load reads the file into memory, creating it if necessary.
func (fs *FileStorage) Load() (*model.Memory, error) {
	f, err := openSized(fs.path)
	if err != nil {
		return nil, err
	}

	buf, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	fs.file = f
	fs.data = buf

	return model.NewMemoryFromBytes(buf)
}

// Save flushes the data to disk.
func (fs *FileStorage) Save(m *model.Memory) error {
	return fs.sync()
}

// OnWrite triggers a sync for persistence.
func (fs *FileStorage) OnWrite(addr model.Address, count int) {
	if err := fs.sync(); err != nil {
		slog.Error("Failed to sync file", "err", err)
	}
}

func (fs *FileStorage) sync() error {
	if fs.data == nil || fs.file == nil {
		return nil
	}
	if _, err := fs.file.WriteAt(fs.data, 0); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	return nil
}

// Close the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
