// Package document manages the set of files available for retrieval:
// freshly uploaded files and files already resident under the data root.
package document

import "github.com/google/uuid"

// Document describes one file that can be used to ground answers.
// Path is the identity key; Name is display-only and not guaranteed unique
// across uploads and directory-resident files.
type Document struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	UseInRAG bool      `json:"use_in_rag"`
}
