// Package index implements the in-process full-text and geospatial
// index over directory entries.
//
// The index holds a derived, possibly lagging copy of the relational
// store and never originates data. Writes go through a Writer that
// buffers mutations and makes them visible in batches via Commit;
// reads run against the committed state only and are safe to execute
// concurrently with writes.
//
// Every document carries the entry version that produced it. Upserts
// are gated on that version: applying the same (id, version) twice is a
// no-op, and an older version never overwrites a newer one, regardless
// of arrival order.
//
// # Query shape
//
// Queries combine free text, a mandatory tag set (AND semantics), an
// optional category, an optional bounding box (antimeridian wrap
// supported), and an optional rating floor. All filters are conjunctive
// and narrow the candidate set before ranking, so pagination never
// produces short pages. Results are ordered by a deterministic
// comparator: relevance score descending, then rating descending, then
// id ascending.
package index
