package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/logger"
)

// records decodes one JSON record per line.
func records(raw string) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
		out = append(out, rec)
	}
	return out
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

var _ = Describe("New", func() {
	It("writes text records at info level by default", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithOutput(&buf))
		l.Debug("embedding batch", "units", 12)
		l.Info("collection replaced", "collection", "file1", "units", 4)

		Expect(buf.String()).NotTo(ContainSubstring("embedding batch"))
		Expect(buf.String()).To(ContainSubstring("collection=file1"))
		Expect(buf.String()).To(ContainSubstring("units=4"))
	})

	It("lets --debug surface debug records", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithOutput(&buf), logger.WithDebug(true))
		l.Debug("loaded persisted collection", "collection", "file2")

		Expect(buf.String()).To(ContainSubstring("loaded persisted collection"))
	})

	It("keeps an explicit level when debug is off", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn), logger.WithDebug(false))
		l.Info("hydrated")
		l.Warn("collection index unavailable, starting empty", "collection", "file1")

		Expect(buf.String()).NotTo(ContainSubstring("hydrated"))
		Expect(buf.String()).To(ContainSubstring("starting empty"))
	})

	It("encodes JSON for log shippers", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON))
		l.Info("search", "collections", 2, "results", 3)

		recs := records(buf.String())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0]["msg"]).To(Equal("search"))
		Expect(recs[0]["results"]).To(BeNumerically("==", 3))
	})

	It("renders pretty terminal output", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatPretty), logger.WithDebug(true))
		l.Debug("collection replaced", "collection", "file1")

		Expect(buf.String()).To(ContainSubstring("collection replaced"))
		Expect(buf.String()).To(ContainSubstring("file1"))
	})

	It("tags records with the component", func() {
		var buf bytes.Buffer
		l := logger.New(
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatJSON),
			logger.WithComponent("serve"),
		)
		l.WithGroup("ingest").Info("queued", "collection", "file1")

		recs := records(buf.String())
		Expect(recs[0]["component"]).To(Equal("serve"))
		Expect(recs[0]["ingest"]).To(HaveKeyWithValue("collection", "file1"))
	})

	It("ignores an empty component", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON), logger.WithComponent(""))
		l.Info("ping")

		Expect(records(buf.String())[0]).NotTo(HaveKey("component"))
	})

	It("fans out to several outputs", func() {
		var a, b bytes.Buffer
		logger.New(logger.WithOutput(&a, &b)).Info("ingested")

		Expect(a.String()).To(ContainSubstring("ingested"))
		Expect(b.String()).To(ContainSubstring("ingested"))
	})
})

var _ = Describe("OpenFile", func() {
	It("appends JSON records with source positions", func() {
		path := filepath.Join(GinkgoT().TempDir(), "kbase.log")

		for _, msg := range []string{"first run", "second run"} {
			l, closer, err := logger.OpenFile(path, logger.WithComponent("serve"))
			Expect(err).NotTo(HaveOccurred())
			l.Info(msg, "listen", ":8090")
			Expect(closer.Close()).To(Succeed())
		}

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		recs := records(string(raw))
		Expect(recs).To(HaveLen(2))
		Expect(recs[0]["msg"]).To(Equal("first run"))
		Expect(recs[1]["msg"]).To(Equal("second run"))
		Expect(recs[1]["component"]).To(Equal("serve"))
		Expect(recs[1]).To(HaveKey(slog.SourceKey))
	})

	It("honors the debug option", func() {
		path := filepath.Join(GinkgoT().TempDir(), "kbase.log")
		l, closer, err := logger.OpenFile(path, logger.WithDebug(true))
		Expect(err).NotTo(HaveOccurred())
		l.Debug("embedding batch", "units", 3)
		Expect(closer.Close()).To(Succeed())

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring("embedding batch"))
	})

	It("reports a path it cannot open", func() {
		_, _, err := logger.OpenFile(filepath.Join(GinkgoT().TempDir(), "missing", "kbase.log"))
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})

var _ = Describe("Tee", func() {
	It("sends each record to the console and the file logger", func() {
		var console, file bytes.Buffer
		l := logger.Tee(
			logger.New(logger.WithOutput(&console)),
			logger.New(logger.WithOutput(&file), logger.WithFormat(logger.FormatJSON), logger.WithDebug(true)),
		)
		l.Debug("embedding batch")
		l.With("collection", "file1").Info("collection replaced")

		Expect(console.String()).NotTo(ContainSubstring("embedding batch"))
		Expect(console.String()).To(ContainSubstring("collection=file1"))

		recs := records(file.String())
		Expect(recs).To(HaveLen(2))
		Expect(recs[1]["collection"]).To(Equal("file1"))
	})

	It("keeps writing when one destination fails", func() {
		var ok bytes.Buffer
		l := logger.Tee(
			logger.New(logger.WithOutput(failingWriter{})),
			logger.New(logger.WithOutput(&ok)),
		)

		err := l.Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still logged", 0))
		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(ok.String()).To(ContainSubstring("still logged"))
	})

	It("nests groups in every destination", func() {
		var a, b bytes.Buffer
		l := logger.Tee(
			logger.New(logger.WithOutput(&a), logger.WithFormat(logger.FormatJSON)),
			logger.New(logger.WithOutput(&b), logger.WithFormat(logger.FormatJSON)),
		)
		l.WithGroup("request").Info("search", "query", "refund policy")

		Expect(records(a.String())[0]["request"]).To(HaveKeyWithValue("query", "refund policy"))
		Expect(records(b.String())[0]["request"]).To(HaveKeyWithValue("query", "refund policy"))
	})

	It("skips nil loggers and degrades to Nop", func() {
		var buf bytes.Buffer
		l := logger.Tee(nil, logger.New(logger.WithOutput(&buf)))
		l.Info("single")
		Expect(buf.String()).To(ContainSubstring("single"))

		Expect(logger.Tee().Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})

var _ = Describe("Nop", func() {
	It("discards everything", func() {
		l := logger.Nop()
		Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		Expect(func() { l.With("collection", "file1").WithGroup("g").Error("dropped") }).NotTo(Panic())
	})
})
