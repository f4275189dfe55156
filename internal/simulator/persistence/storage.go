// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"

	"github.com/ffutop/cnet-link/internal/config"
	"github.com/ffutop/cnet-link/internal/simulator/model"
)

// Storage defines the interface for persisting the simulator's device memory.
type Storage interface {
	// Load loads the memory from storage.
	// If no data exists, it returns a zeroed memory.
	Load() (*model.Memory, error)

	// Save saves the current memory to storage.
	Save(m *model.Memory) error

	// OnWrite is a hook called whenever words are modified.
	// It allows the storage to perform real-time persistence.
	OnWrite(addr model.Address, count int)

	// Close releases the backing resources.
	Close() error
}

// New creates the storage selected by cfg.
func New(cfg config.PersistenceConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file persistence needs a path")
		}
		return NewFileStorage(cfg.Path), nil
	case "mmap":
		if cfg.Path == "" {
			return nil, fmt.Errorf("mmap persistence needs a path")
		}
		return NewMmapStorage(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.Type)
	}
}
