// Package external defines the collaborator interfaces the substrate depends
// on but does not implement: discovery/crossref search and artifact
// persistence. Both are explicitly out of scope per spec §1 — concrete
// implementations (DB drivers, HTTP clients to semantic-scholar-like
// indexes) live outside this module.
package external

import "context"

// DiscoveredPaper is the normalized record returned by search/resolve calls.
type DiscoveredPaper struct {
	ID             string
	Title          string
	Authors        []string
	Year           int
	Journal        string
	Venue          string
	CitationCount  int
	DOI            string
	Abstract       string
	URL            string
}

// SearchConfig tunes a title search (spec §6).
type SearchConfig struct {
	MinScore float64
	Limit    int
}

// Search is the discovery/crossref collaborator.
type Search interface {
	SearchByTitle(ctx context.Context, title string, cfg SearchConfig, limit int) ([]DiscoveredPaper, error)
	ResolveDOI(ctx context.Context, doi string) (*DiscoveredPaper, error)
	ResolveArxiv(ctx context.Context, id string) (*DiscoveredPaper, error)
}

// ArtifactKind discriminates what is being persisted.
type ArtifactKind string

const (
	ArtifactPaper        ArtifactKind = "paper"
	ArtifactContent      ArtifactKind = "content"
	ArtifactSection      ArtifactKind = "section"
	ArtifactTag          ArtifactKind = "tag"
	ArtifactCitation     ArtifactKind = "citation"
	ArtifactVerification ArtifactKind = "verification"
	ArtifactSummary      ArtifactKind = "summary"
)

// Persistence is the artifact-store collaborator. All calls are idempotent
// on the (paperID, kind) key. Save failures are logged and swallowed by
// callers — see spec §4.8/§7 — never surfaced as a primary-task failure.
type Persistence interface {
	FindByID(ctx context.Context, kind ArtifactKind, paperID string) (map[string]any, error)
	Save(ctx context.Context, kind ArtifactKind, paperID string, artifact map[string]any) error
	DeleteByPaperID(ctx context.Context, kind ArtifactKind, paperID string) error
}
