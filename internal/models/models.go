package models

// Entity is a node in the knowledge graph as returned by graph reads and
// searches. Observations are content strings in insertion order.
type Entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	Observations []string `json:"observations"`
}

// Relation is a directed, typed edge rendered with endpoint names.
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relation_type"`
}

// KnowledgeGraph is a set of entities plus relations among them. Every
// relation's endpoints are present in Entities.
type KnowledgeGraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// Observation is a stored fact with the id used for point deletion.
type Observation struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// RelationRecord is a stored relation with the id used for point deletion.
type RelationRecord struct {
	ID           int64  `json:"id"`
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relation_type"`
}

// EntityDetail is a single entity with its observations and every relation
// incident to it, in either direction.
type EntityDetail struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	EntityType   string           `json:"entity_type"`
	Observations []Observation    `json:"observations"`
	Relations    []RelationRecord `json:"relations"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
}

// NewEntity is the input to entity creation.
type NewEntity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	Observations []string `json:"observations,omitempty"`
}

// NewRelation identifies a relation by its endpoint names and type. It is
// used both to create and to delete relations.
type NewRelation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relation_type"`
}

// ObservationBatch targets one entity with a list of observation contents.
type ObservationBatch struct {
	EntityName string   `json:"entity_name"`
	Contents   []string `json:"contents"`
}

// AddedObservations reports the contents that were actually inserted.
type AddedObservations struct {
	EntityName        string   `json:"entity_name"`
	AddedObservations []string `json:"added_observations"`
}

// ObservationDeletion lists observation contents to remove from an entity.
type ObservationDeletion struct {
	EntityName   string   `json:"entity_name"`
	Observations []string `json:"observations"`
}

// MemoryItem is a timeline record, independent of the graph.
type MemoryItem struct {
	ID        int64    `json:"id"`
	Project   string   `json:"project"`
	Kind      string   `json:"kind"`
	Title     *string  `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Source    *string  `json:"source"`
	CreatedAt string   `json:"created_at"`
}

// NewMemoryItem is the input to appending a memory item.
type NewMemoryItem struct {
	Kind    string   `json:"kind"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// ListOptions filters and paginates memory item listings and searches.
type ListOptions struct {
	Kind   string
	Limit  int
	Offset int
}
