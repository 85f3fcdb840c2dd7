// Package store defines the persistence interface for registration tasks
// and the shared store error taxonomy. It abstracts the underlying storage
// mechanism so the worker and service layers remain independent of whether
// tasks live in PostgreSQL or in memory.
package store
