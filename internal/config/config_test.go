package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hamed0406/servicecheck/internal/config"
)

var _ = Describe("Config", func() {
	var tempDir string

	writeConfig := func(content string) string {
		path := filepath.Join(tempDir, "servicecheck.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	AfterEach(func() {
		os.Unsetenv("SERVICECHECK_PROBE_CONCURRENCY")
		os.Unsetenv("SERVICECHECK_API_ADMIN_KEYS")
		os.Unsetenv("SERVICECHECK_SCHEDULER_INTERVAL")
		os.Unsetenv("SERVICECHECK_FEED_ENABLED")
	})

	Describe("Load", func() {
		Context("with no config file", func() {
			It("should fall back to defaults", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.API.Addr).To(Equal("127.0.0.1:8080"))
				Expect(cfg.Probe.ConnectTimeout).To(Equal(1000 * time.Millisecond))
				Expect(cfg.Probe.ResponseTimeout).To(Equal(5000 * time.Millisecond))
				Expect(cfg.Probe.LatencyMode).To(Equal(config.LatencyConnect))
				Expect(cfg.Probe.Handshake).To(BeFalse())
				Expect(cfg.Scheduler.Interval).To(Equal(10 * time.Second))
				Expect(cfg.Scheduler.Enabled).To(BeTrue())
				Expect(cfg.Feed.Enabled).To(BeTrue())
				Expect(cfg.Notify.OnStartup).To(BeFalse())
				Expect(cfg.API.AdminKeys).To(BeEmpty())
			})
		})

		Context("with a valid config file", func() {
			var path string

			BeforeEach(func() {
				path = writeConfig(`
api:
  addr: ":9090"
  allowed_origins: ["http://localhost:3000"]
  admin_keys: ["adm_x"]
registry:
  path: "servers.yaml"
probe:
  connect_timeout: 250ms
  latency_mode: response
  handshake: true
  concurrency: 16
  dns_server: "127.0.0.1:5353"
scheduler:
  interval: 30s
notify:
  on_startup: true
log:
  level: debug
`)
			})

			It("should parse every section", func() {
				cfg, err := config.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.API.Addr).To(Equal(":9090"))
				Expect(cfg.API.AllowedOrigins).To(ConsistOf("http://localhost:3000"))
				Expect(cfg.API.AdminKeys).To(ConsistOf("adm_x"))
				Expect(cfg.Registry.Path).To(Equal("servers.yaml"))
				Expect(cfg.Probe.ConnectTimeout).To(Equal(250 * time.Millisecond))
				Expect(cfg.Probe.LatencyMode).To(Equal(config.LatencyResponse))
				Expect(cfg.Probe.Handshake).To(BeTrue())
				Expect(cfg.Probe.Concurrency).To(Equal(16))
				Expect(cfg.Probe.DNSServer).To(Equal("127.0.0.1:5353"))
				Expect(cfg.Scheduler.Interval).To(Equal(30 * time.Second))
				Expect(cfg.Notify.OnStartup).To(BeTrue())
				Expect(cfg.Log.Level).To(Equal(config.LogLevelDebug))
			})

			It("should let environment variables win over the file", func() {
				os.Setenv("SERVICECHECK_PROBE_CONCURRENCY", "4")
				os.Setenv("SERVICECHECK_API_ADMIN_KEYS", "adm_a,adm_b")
				os.Setenv("SERVICECHECK_SCHEDULER_INTERVAL", "1m")

				cfg, err := config.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Probe.Concurrency).To(Equal(4))
				Expect(cfg.API.AdminKeys).To(ConsistOf("adm_a", "adm_b"))
				Expect(cfg.Scheduler.Interval).To(Equal(time.Minute))
			})
		})

		Context("with an explicit path that does not exist", func() {
			It("should return an error", func() {
				_, err := config.Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with invalid values", func() {
			It("should reject an unknown latency mode", func() {
				_, err := config.Load(writeConfig("probe:\n  latency_mode: handshake\n"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LatencyMode"))
			})

			It("should reject a bind address without a port", func() {
				_, err := config.Load(writeConfig("api:\n  addr: localhost\n"))
				Expect(err).To(HaveOccurred())
			})

			It("should reject a sub-second interval", func() {
				_, err := config.Load(writeConfig("scheduler:\n  interval: 100ms\n"))
				Expect(err).To(HaveOccurred())
			})

			It("should reject a malformed slack webhook", func() {
				_, err := config.Load(writeConfig("notify:\n  slack_webhook: \"not a url\"\n"))
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with the feed disabled", func() {
			It("should not require a feed URL", func() {
				os.Setenv("SERVICECHECK_FEED_ENABLED", "false")
				cfg, err := config.Load(writeConfig("feed:\n  url: \"\"\n"))
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Feed.Enabled).To(BeFalse())
			})
		})
	})
})
