package students

import (
	"context"
	"sync"
)

// NewMemoryDirectory constructs an in-memory directory for tests and dev
// mode. Students are registered with Add.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{present: make(map[[2]string]bool)}
}

// MemoryDirectory keeps known students in a map.
type MemoryDirectory struct {
	mu      sync.RWMutex
	present map[[2]string]bool
}

// Add registers a student under a school.
func (d *MemoryDirectory) Add(schoolID, studentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present[[2]string{schoolID, studentID}] = true
}

// Remove marks a student as no longer existing, mirroring a soft delete.
func (d *MemoryDirectory) Remove(schoolID, studentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.present, [2]string{schoolID, studentID})
}

// Exists reports whether the student has been registered.
func (d *MemoryDirectory) Exists(_ context.Context, schoolID, studentID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.present[[2]string{schoolID, studentID}], nil
}
