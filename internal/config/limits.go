package config

const (
	// MaxTitleLength is the maximum length for node titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxTitleLength = 255

	// MaxReorderBatch caps the number of ids accepted by a single reorder.
	MaxReorderBatch = 1000

	// MaxTreeDepth bounds ancestor walks. Chains longer than this are treated
	// as corrupted and cut short.
	MaxTreeDepth = 1024
)
