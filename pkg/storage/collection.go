package storage

import (
	"encoding/json"
	"fmt"
	"os"
)

// Collection pairs a named in-memory value with the JSON document it is
// mirrored to. Mutations happen in place on Value; Commit makes them
// durable. A Collection is not safe for concurrent use on its own, the
// owning Store's lock serializes access.
type Collection[T any] struct {
	path  string
	Value T
}

// LoadCollection reads the JSON document at path into a collection. If the
// file does not exist it is created holding defaultValue.
func LoadCollection[T any](path string, defaultValue T) (*Collection[T], error) {
	c := &Collection[T]{path: path, Value: defaultValue}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := c.Commit(); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &c.Value); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return c, nil
}

// Path returns the file the collection is mirrored to.
func (c *Collection[T]) Path() string {
	return c.path
}

// Commit serializes the current value and atomically replaces the target
// file: write to a temporary sibling, sync, then rename over the target.
// No reader ever observes a partially written document. A failed commit
// does not roll back the in-memory value; the disk reconciler is the
// recovery path when memory and disk diverge.
func (c *Collection[T]) Commit() error {
	data, err := json.MarshalIndent(c.Value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.path, err)
	}
	data = append(data, '\n')

	tmp := c.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}
