package domain

import "time"

// Place is a rural health post (posta) patients are attended from.
// Template places seed new deployments and must never be deleted.
type Place struct {
	ID         string
	Name       string
	Commune    string
	IsTemplate bool
	CreatedAt  time.Time
}

// PlacePatch enumerates the place fields an approved modification may
// touch. The template flag is excluded so protection cannot be lifted by
// a generic patch.
type PlacePatch struct {
	Name    *string
	Commune *string
}

// Empty reports whether the patch carries no changes.
func (p PlacePatch) Empty() bool {
	return p.Name == nil && p.Commune == nil
}

// BackupFile describes a database snapshot on the backup volume.
type BackupFile struct {
	Name      string
	SizeBytes int64
	CreatedAt time.Time
}
