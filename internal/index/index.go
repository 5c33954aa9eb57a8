package index

// AnnotationIndex defines the interface for the searchable annotation mirror.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type AnnotationIndex interface {
	Rebuild(rows []Row, checksum string) error
	Checksum() (string, error)
	Count() (int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies AnnotationIndex at compile time.
var _ AnnotationIndex = (*DB)(nil)
