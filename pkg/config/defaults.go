package config

const (
	defaultStorageProvider = "file"
	defaultStorageTimeout  = "30s"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingTimeout    = "60s"

	defaultMaxChunkChars = 1000

	defaultTopK                = 3
	defaultSimilarityThreshold = 0.2
	defaultMaxContextChars     = 8000

	defaultGenerationProvider  = "deepseek"
	defaultGenerationModel     = "deepseek-chat"
	defaultGenerationTemp      = 0.2
	defaultGenerationMaxTokens = 2000
	defaultGenerationTimeout   = "30s"

	defaultAPIListen = ":8090"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "kbase.collections"
)

// defaultCollections are the two document slots available out of the box.
var defaultCollections = []string{"file1", "file2"}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	threshold := defaultSimilarityThreshold
	temperature := defaultGenerationTemp

	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
			Timeout:  defaultStorageTimeout,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			Timeout:    defaultEmbeddingTimeout,
		},
		Chunking: ChunkingConfig{
			MaxChunkChars: defaultMaxChunkChars,
		},
		Retrieval: RetrievalConfig{
			TopK:                defaultTopK,
			SimilarityThreshold: &threshold,
			MaxContextChars:     defaultMaxContextChars,
			Collections:         append([]string(nil), defaultCollections...),
		},
		Generation: GenerationConfig{
			Provider:    defaultGenerationProvider,
			Model:       defaultGenerationModel,
			Temperature: &temperature,
			MaxTokens:   defaultGenerationMaxTokens,
			Timeout:     defaultGenerationTimeout,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
