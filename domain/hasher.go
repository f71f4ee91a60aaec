package domain

// Hasher fingerprints payloads such as the system instructions.
type Hasher interface {
	Hash(data []byte) string
}
