package env_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/chrisboulton/rosbridge-go/internal/env"
)

var envVars = []string{
	"ROSBRIDGE_URL",
	"ROSBRIDGE_LOG_LEVEL",
	"ROSBRIDGE_CONNECT_TIMEOUT",
	"ROSBRIDGE_LISTEN",
}

var _ = Describe("env", func() {
	var dir string

	BeforeEach(func() {
		for _, name := range envVars {
			Expect(os.Unsetenv(name)).To(Succeed())
		}

		var err error
		dir, err = os.MkdirTemp("", "rosbridge-env")
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		for _, name := range envVars {
			Expect(os.Unsetenv(name)).To(Succeed())
		}
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	writeFile := func(contents string) string {
		path := filepath.Join(dir, "rosbridge.toml")
		Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())
		return path
	}

	Describe("LoadConfig", func() {
		It("uses the defaults without a file or environment", func() {
			conf, err := env.LoadConfig(context.Background(), "")
			Expect(err).To(Succeed())

			Expect(conf.URL).To(Equal(env.DefaultURL))
			Expect(conf.LogLevel).To(Equal(env.DefaultLogLevel))
			Expect(conf.ConnectTimeout).To(Equal(env.DefaultConnectTimeout))
			Expect(conf.Listen).To(Equal(env.DefaultListen))
		})

		It("reads values from a TOML file", func() {
			path := writeFile(`
url = "ws://robot.local:9090"
log_level = "debug"
connect_timeout = "3s"
`)

			conf, err := env.LoadConfig(context.Background(), path)
			Expect(err).To(Succeed())

			Expect(conf.URL).To(Equal("ws://robot.local:9090"))
			Expect(conf.LogLevel).To(Equal("debug"))
			Expect(conf.ConnectTimeout).To(Equal(3 * time.Second))
			Expect(conf.Listen).To(Equal(env.DefaultListen))
		})

		It("lets environment variables override the file", func() {
			path := writeFile(`url = "ws://robot.local:9090"`)
			Expect(os.Setenv("ROSBRIDGE_URL", "ws://override:9090")).To(Succeed())
			Expect(os.Setenv("ROSBRIDGE_CONNECT_TIMEOUT", "250ms")).To(Succeed())

			conf, err := env.LoadConfig(context.Background(), path)
			Expect(err).To(Succeed())

			Expect(conf.URL).To(Equal("ws://override:9090"))
			Expect(conf.ConnectTimeout).To(Equal(250 * time.Millisecond))
		})

		It("fails on a missing file", func() {
			_, err := env.LoadConfig(context.Background(), filepath.Join(dir, "missing.toml"))
			Expect(err).To(HaveOccurred())
		})

		It("fails on an unknown log level", func() {
			Expect(os.Setenv("ROSBRIDGE_LOG_LEVEL", "chatty")).To(Succeed())

			_, err := env.LoadConfig(context.Background(), "")
			Expect(err).To(MatchError(ContainSubstring("chatty")))
		})
	})

	Describe("Validate", func() {
		It("rejects a non-positive connect timeout", func() {
			conf := env.Config{URL: env.DefaultURL, LogLevel: "info"}
			Expect(conf.Validate()).To(MatchError(ContainSubstring("connect_timeout")))
		})

		It("rejects an empty url", func() {
			conf := env.Config{LogLevel: "info", ConnectTimeout: time.Second}
			Expect(conf.Validate()).NotTo(Succeed())
		})
	})

	Describe("MakeLogger", func() {
		It("builds a logger at the configured level", func() {
			log, err := env.MakeLogger("warn")
			Expect(err).To(Succeed())

			Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
			Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("loud")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MakeSlogLogger", func() {
		It("filters below the configured level", func() {
			var buf bytes.Buffer
			log, err := env.MakeSlogLogger(&buf, "warn")
			Expect(err).To(Succeed())

			log.Info("hidden")
			log.Warn("shown")

			Expect(buf.String()).NotTo(ContainSubstring("hidden"))
			Expect(buf.String()).To(ContainSubstring("shown"))
		})
	})
})
