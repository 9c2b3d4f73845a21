package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/medscribe/internal/errors"
)

// Registry holds published schemas, keyed by record type and version
type Registry struct {
	mu      sync.RWMutex
	schemas map[string][]*Schema // ascending by version
	sealed  bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string][]*Schema),
	}
}

// Register publishes a schema. Versions of a type must strictly increase;
// a published version is never replaced.
func (r *Registry) Register(def Definition) error {
	s, err := newSchema(def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("schema %s: registry is sealed", s.recordType)
	}

	versions := r.schemas[s.recordType]
	if n := len(versions); n > 0 {
		latest := versions[n-1]
		if s.version <= latest.version {
			return fmt.Errorf("schema %s: version %d already published (latest v%d)", s.recordType, s.version, latest.version)
		}
		if s.prefix != latest.prefix {
			return fmt.Errorf("schema %s: id prefix cannot change between versions (%s -> %s)", s.recordType, latest.prefix, s.prefix)
		}
	}

	r.schemas[s.recordType] = append(versions, s)
	return nil
}

// Get returns the latest version of a record type
func (r *Registry) Get(recordType string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.schemas[recordType]
	if len(versions) == 0 {
		return nil, errors.NewUnknownRecordType(recordType)
	}
	return versions[len(versions)-1], nil
}

// GetVersion returns a specific published version of a record type
func (r *Registry) GetVersion(recordType string, version int) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.schemas[recordType] {
		if s.version == version {
			return s, nil
		}
	}
	return nil, errors.NewUnknownRecordType(fmt.Sprintf("%s@v%d", recordType, version))
}

// Types returns the registered record types, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry of built-in schemas.
// It is built on first use and sealed, so Register on it returns an error.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg := NewRegistry()
		for _, def := range Builtin() {
			if err := reg.Register(def); err != nil {
				panic(fmt.Sprintf("built-in schema %s: %v", def.Type, err))
			}
		}
		reg.sealed = true
		defaultRegistry = reg
	})
	return defaultRegistry
}
