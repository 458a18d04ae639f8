package database

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSources() ([]Source, error)

	UpsertSource(name, sourceType, url string, enabled bool, order int) error
	UpdateSourceCount(name string, count int) error
	UpdateSourceError(name string, countErr error) error
	DeleteSourcesExcept(names []string) (int64, error)
}
