package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --top-k
// on "kbase search", "kbase ask" and "kbase serve").
type Flag struct {
	// Name is the long flag name (e.g. "top-k").
	Name string

	// Shorthand is the one-letter short flag (e.g. "k"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "retrieval.top_k").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageProvider  = "storage-provider"
	FlagStorageTarget    = "storage-target"
	FlagEmbeddingProv    = "embedding-provider"
	FlagEmbeddingTgt     = "embedding-target"
	FlagEmbeddingModel   = "embedding-model"
	FlagEmbeddingDims    = "embedding-dimensions"
	FlagMaxChunkChars    = "max-chunk-chars"
	FlagTopK             = "top-k"
	FlagThreshold        = "threshold"
	FlagMaxContextChars  = "max-context-chars"
	FlagGenerationProv   = "generation-provider"
	FlagGenerationTgt    = "generation-target"
	FlagGenerationModel  = "generation-model"
	FlagAPIListen        = "listen"
	FlagEventsProvider   = "events-provider"
	FlagEventsBrokers    = "events-brokers"
	FlagEventsTopic      = "events-topic"
	FlagCollectionsScope = "collections"
)

// Flags is the registry shared by every kbase command.
var Flags = FlagSet{
	FlagStorageProvider:  {Name: "storage-provider", ViperKey: "storage.provider", Description: "Vector store persister (file, sqlite, postgres, chroma, qdrant, memory)"},
	FlagStorageTarget:    {Name: "storage-target", ViperKey: "storage.target", Description: "Persister location: directory, database path, DSN or URL"},
	FlagEmbeddingProv:    {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, openai, hash)"},
	FlagEmbeddingTgt:     {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:   {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:    {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagMaxChunkChars:    {Name: "max-chunk-chars", ViperKey: "chunking.max_chunk_chars", Description: "Maximum characters per text unit"},
	FlagTopK:             {Name: "top-k", Shorthand: "k", ViperKey: "retrieval.top_k", Description: "Maximum results per collection"},
	FlagThreshold:        {Name: "threshold", ViperKey: "retrieval.similarity_threshold", Description: "Minimum cosine similarity for a result"},
	FlagMaxContextChars:  {Name: "max-context-chars", ViperKey: "retrieval.max_context_chars", Description: "Context length limit, 0 for unlimited"},
	FlagGenerationProv:   {Name: "generation-provider", ViperKey: "generation.provider", Description: "Answer provider (deepseek, openai, ollama, none)"},
	FlagGenerationTgt:    {Name: "generation-target", ViperKey: "generation.target", Description: "Answer provider base URL"},
	FlagGenerationModel:  {Name: "generation-model", ViperKey: "generation.model", Description: "Answer model name"},
	FlagAPIListen:        {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagEventsProvider:   {Name: "events-provider", ViperKey: "events.provider", Description: "Collection event publisher (none, kafka)"},
	FlagEventsBrokers:    {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagEventsTopic:      {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for collection events"},
	FlagCollectionsScope: {Name: "collections", Shorthand: "c", ViperKey: "retrieval.collections", Description: "Comma separated collections to search, in order"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloat64Flag registers a float64 flag on cmd from the given FlagSet.
func AddFloat64Flag(cmd *cobra.Command, fs FlagSet, registryKey string, target *float64) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
// List defaults render comma separated.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	if list, ok := v.Get(viperKey).([]string); ok {
		return strings.Join(list, ",")
	}
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}

// defaultFloat64 returns the default float64 value for a viper key from NewDefaultConfig.
func defaultFloat64(viperKey string) float64 {
	v := viper.New()
	setViperDefaults(v)
	return v.GetFloat64(viperKey)
}
