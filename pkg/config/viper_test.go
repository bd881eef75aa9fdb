package config_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/kbase/pkg/config"
)

var _ = Describe("InitViper", func() {
	initViper := func(data string) *viper.Viper {
		v, err := config.InitViper(dotdir(data))
		Expect(err).NotTo(HaveOccurred())
		return v
	}

	It("starts from the defaults", func() {
		v := initViper("")
		Expect(v.GetString("storage.provider")).To(Equal("file"))
		Expect(v.GetInt("retrieval.top_k")).To(Equal(3))
		Expect(v.GetFloat64("retrieval.similarity_threshold")).To(BeNumerically("~", 0.2))
		Expect(v.GetStringSlice("retrieval.collections")).To(Equal([]string{"file1", "file2"}))
	})

	It("layers the file over the defaults", func() {
		v := initViper("[retrieval]\ntop_k = 7\n")
		Expect(v.GetInt("retrieval.top_k")).To(Equal(7))
		Expect(v.GetString("storage.provider")).To(Equal("file"))
	})

	It("layers KBASE_ variables over the file", func() {
		GinkgoT().Setenv("KBASE_API_LISTEN", ":6060")
		GinkgoT().Setenv("KBASE_EMBEDDING_MODEL", "from-env")

		v := initViper("[embedding]\nmodel = \"from-file\"\n")
		Expect(v.GetString("api.listen")).To(Equal(":6060"))
		Expect(v.GetString("embedding.model")).To(Equal("from-env"))
	})
})

var _ = Describe("FromViper", func() {
	resolve := func(data string) (*config.Config, error) {
		v, err := config.InitViper(dotdir(data))
		Expect(err).NotTo(HaveOccurred())
		return config.FromViper(v)
	}

	It("resolves the defaults into a Config", func() {
		cfg, err := resolve("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Retrieval.Collections).To(Equal([]string{"file1", "file2"}))
		Expect(cfg.EmbeddingTimeout()).To(Equal(60 * time.Second))
		Expect(cfg.Retrieval.Overrides).To(BeNil())
	})

	It("splits comma separated lists from the environment", func() {
		GinkgoT().Setenv("KBASE_RETRIEVAL_COLLECTIONS", "a,b")
		GinkgoT().Setenv("KBASE_EVENTS_BROKERS", "k1:9092,k2:9092")

		cfg, err := resolve("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Retrieval.Collections).To(Equal([]string{"a", "b"}))
		Expect(cfg.Events.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
	})

	It("decodes per-collection overrides from the file", func() {
		cfg, err := resolve("[retrieval.overrides.file2]\ntop_k = 1\nsimilarity_threshold = 0.9\n")
		Expect(err).NotTo(HaveOccurred())

		o, ok := cfg.Retrieval.Overrides["file2"]
		Expect(ok).To(BeTrue())
		Expect(o.TopK).To(Equal(1))
		Expect(*o.SimilarityThreshold).To(BeNumerically("~", 0.9))
	})

	It("validates what it resolved", func() {
		GinkgoT().Setenv("KBASE_RETRIEVAL_SIMILARITY_THRESHOLD", "3")
		_, err := resolve("")
		Expect(err).To(MatchError(ContainSubstring("retrieval.similarity_threshold")))
	})
})

var _ = Describe("flag registry", func() {
	It("binds a set flag over the file value", func() {
		v, err := config.InitViper(dotdir("[api]\nlisten = \":5555\"\n"))
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "serve"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})
		Expect(v.GetString("api.listen")).To(Equal(":5555"))

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())
		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("ignores registry keys it does not know", func() {
		v, err := config.InitViper(dotdir(""))
		Expect(err).NotTo(HaveOccurred())

		config.BindRegisteredFlags(v, &cobra.Command{Use: "serve"}, config.FlagSet{}, []string{"nonexistent"})
		Expect(v.GetString("api.listen")).To(Equal(config.NewDefaultConfig().API.Listen))
	})

	It("takes names, shorthands and defaults from the registry", func() {
		cmd := &cobra.Command{Use: "search"}
		var (
			collections string
			topK        int
			threshold   float64
			dims        uint
		)
		config.AddStringFlag(cmd, config.Flags, config.FlagCollectionsScope, &collections)
		config.AddIntFlag(cmd, config.Flags, config.FlagTopK, &topK)
		config.AddFloat64Flag(cmd, config.Flags, config.FlagThreshold, &threshold)
		config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &dims)

		c := cmd.Flags().Lookup("collections")
		Expect(c.Shorthand).To(Equal("c"))
		Expect(c.DefValue).To(Equal("file1,file2"))
		Expect(cmd.Flags().Lookup("top-k").Shorthand).To(Equal("k"))
		Expect(cmd.Flags().Lookup("embedding-dimensions").Usage).To(Equal("Embedding dimensionality"))

		Expect(topK).To(Equal(3))
		Expect(threshold).To(BeNumerically("~", 0.2))
		Expect(dims).To(Equal(uint(768)))
	})
})
