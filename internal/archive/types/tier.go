package types

import "fmt"

// StorageTier is the storage class a file lives in
type StorageTier string

const (
	StorageTierStandard           StorageTier = "standard"
	StorageTierGlacierFlexible    StorageTier = "glacier_flexible"
	StorageTierGlacierDeepArchive StorageTier = "glacier_deep_archive"
)

// Valid reports whether t is a known tier
func (t StorageTier) Valid() bool {
	switch t {
	case StorageTierStandard, StorageTierGlacierFlexible, StorageTierGlacierDeepArchive:
		return true
	}
	return false
}

// IsArchival reports whether objects in t must be restored before download
func (t StorageTier) IsArchival() bool {
	return t == StorageTierGlacierFlexible || t == StorageTierGlacierDeepArchive
}

// RestoreTier is the retrieval speed requested from the provider
type RestoreTier string

const (
	RestoreTierExpedited RestoreTier = "expedited"
	RestoreTierStandard  RestoreTier = "standard"
	RestoreTierBulk      RestoreTier = "bulk"
)

// ParseRestoreTier validates s; an empty string selects def
func ParseRestoreTier(s string, def RestoreTier) (RestoreTier, error) {
	if s == "" {
		return def, nil
	}
	t := RestoreTier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown restore tier %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known tier
func (t RestoreTier) Valid() bool {
	switch t {
	case RestoreTierExpedited, RestoreTierStandard, RestoreTierBulk:
		return true
	}
	return false
}

// AllowedFor reports whether the provider offers t for objects in storage.
// Deep archive has no expedited retrieval.
func (t RestoreTier) AllowedFor(storage StorageTier) bool {
	return !(storage == StorageTierGlacierDeepArchive && t == RestoreTierExpedited)
}

func (t RestoreTier) String() string {
	return string(t)
}
