package postgres

import "context"

// Rows are ordered by their identity seq column, which preserves insertion
// order; the order of connections fixes the order paths are found in.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS rbd_diagrams (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rbd_nodes (
    diagram_id TEXT NOT NULL REFERENCES rbd_diagrams(id) ON DELETE CASCADE,
    name       TEXT NOT NULL,
    seq        BIGINT GENERATED ALWAYS AS IDENTITY,
    PRIMARY KEY (diagram_id, name)
);

CREATE TABLE IF NOT EXISTS rbd_components (
    diagram_id          TEXT NOT NULL REFERENCES rbd_diagrams(id) ON DELETE CASCADE,
    name                TEXT NOT NULL,
    failure_probability DOUBLE PRECISION NOT NULL
        CHECK (failure_probability >= 0 AND failure_probability <= 1),
    seq                 BIGINT GENERATED ALWAYS AS IDENTITY,
    PRIMARY KEY (diagram_id, name)
);

CREATE TABLE IF NOT EXISTS rbd_connections (
    diagram_id TEXT NOT NULL REFERENCES rbd_diagrams(id) ON DELETE CASCADE,
    id         TEXT NOT NULL,
    from_node  TEXT NOT NULL,
    to_node    TEXT NOT NULL,
    component  TEXT NOT NULL,
    seq        BIGINT GENERATED ALWAYS AS IDENTITY,
    PRIMARY KEY (diagram_id, id),
    UNIQUE (diagram_id, from_node, to_node),
    CHECK (from_node <> to_node),
    FOREIGN KEY (diagram_id, from_node) REFERENCES rbd_nodes(diagram_id, name) ON DELETE CASCADE,
    FOREIGN KEY (diagram_id, to_node)   REFERENCES rbd_nodes(diagram_id, name) ON DELETE CASCADE,
    FOREIGN KEY (diagram_id, component) REFERENCES rbd_components(diagram_id, name)
);

CREATE INDEX IF NOT EXISTS idx_rbd_connections_component ON rbd_connections(diagram_id, component);
`

// CreateSchema creates the rbd_* tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the rbd_* tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS rbd_connections, rbd_components, rbd_nodes, rbd_diagrams CASCADE;`)
	return err
}
