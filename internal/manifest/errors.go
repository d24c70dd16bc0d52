package manifest

import "errors"

var (
	// ErrChecksumMismatch means the fetched artifact's SHA-256 did not
	// match the manifest's declared checksum. The loader refuses to
	// install; the prior compiled ruleset (if any) is left untouched.
	ErrChecksumMismatch = errors.New("manifest: checksum mismatch")

	// ErrArtifactNotFound means the manifest or artifact object does not
	// exist at the expected path.
	ErrArtifactNotFound = errors.New("manifest: artifact not found")

	// ErrSchemaIncompatible means the manifest or artifact is not one this
	// loader can use: an unknown schema_version, a document that does not
	// parse, or a field_registry_version newer than the active field
	// registry.
	ErrSchemaIncompatible = errors.New("manifest: schema incompatible")
)

const supportedSchemaVersion = "2.0"
