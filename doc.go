// Package quire is a personal e-book library service. Book files are
// stored across an ordered list of third-party storage providers by a
// cascading gateway, and book metadata is spread across N small relational
// databases by a deterministic key-sharded router. The root package holds
// the domain types and the LibraryService that glues the two planes
// together; see the shard, database, storage and http subpackages.
package quire
