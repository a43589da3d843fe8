package engine

import "fmt"

// Migrate copies every snapshot from src into dst and returns how many keys
// were written. It works in both directions:
// - JSON directory -> SQLite (the "upgrade")
// - SQLite -> JSON directory (backup/inspection)
func Migrate(src, dst Persister) (int, error) {
	data, err := src.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to read source: %w", err)
	}

	n := 0
	for k, v := range data {
		if err := dst.Save(k, v); err != nil {
			return n, fmt.Errorf("failed to write key %s to destination: %w", k, err)
		}
		n++
	}
	return n, nil
}
