package initcmder_test

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/kbase/cmd/kbase/init"
	"github.com/papercomputeco/kbase/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "kbase-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(GinkgoWriter)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates a .kbase directory with a default config.toml", func() {
		Expect(run()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".kbase"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Storage.Provider).To(Equal("file"))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		Expect(cfg.Retrieval.TopK).To(Equal(3))
		Expect(cfg.Retrieval.Collections).To(Equal([]string{"file1", "file2"}))
		Expect(cfg.Generation.Provider).To(Equal("deepseek"))
	})

	It("does not overwrite an existing config when run again", func() {
		dir := filepath.Join(tmpDir, ".kbase")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		cfgPath := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(cfgPath, []byte("[storage]\nprovider = \"sqlite\"\n"), 0o600)).To(Succeed())

		Expect(run()).To(Succeed())

		data, err := os.ReadFile(cfgPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`provider = "sqlite"`))
	})

	It("writes the offline preset", func() {
		Expect(run("--preset", "offline")).To(Succeed())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Embedding.Provider).To(Equal("hash"))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(256)))
		Expect(cfg.Generation.Provider).To(Equal("none"))
	})

	It("writes the openai preset", func() {
		Expect(run("--preset", "openai")).To(Succeed())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Embedding.Provider).To(Equal("openai"))
		Expect(cfg.Generation.Provider).To(Equal("openai"))
	})

	It("rejects an unknown preset", func() {
		err := run("--preset", "bogus")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown preset"))
	})
})

func loadConfig(dir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(dir, ".kbase", "config.toml"))
	Expect(err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	Expect(toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}
