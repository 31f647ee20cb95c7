// Copyright 2025 Bloathound Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

const sampleConfig = `
scanner:
  risk_threshold: 6
  scan_interval: 1800
  log_level: debug
  default_user: default
store:
  host: 127.0.0.1
  port: "3306"
  username: bloathound
  password: secret
  database_name: bloathound
agent:
  address: ws://127.0.0.1:8765/agent
  request_timeout: 120
gateway:
  host: 127.0.0.1
  port: 8800
api:
  enabled: true
  port: 8801
metrics:
  enabled: true
  port: 9090
  path: /metrics
`

var _ = Describe("Loader", func() {
	var (
		tmpDir     string
		configPath string
		loader     *Loader
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bloathound-config-*")
		Expect(err).NotTo(HaveOccurred())
		configPath = filepath.Join(tmpDir, "config.yaml")
		loader = NewLoader(configPath)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(content string) {
		Expect(os.WriteFile(configPath, []byte(content), 0644)).To(Succeed())
	}

	Describe("Load", func() {
		It("should parse a valid configuration", func() {
			writeConfig(sampleConfig)

			cfg, err := loader.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Scanner.RiskThreshold).To(Equal(6))
			Expect(cfg.Scanner.ScanInterval()).To(Equal(30 * time.Minute))
			Expect(cfg.Scanner.LogLevel).To(Equal("debug"))
			Expect(cfg.Store.Host).To(Equal("127.0.0.1"))
			Expect(cfg.Agent.Address).To(Equal("ws://127.0.0.1:8765/agent"))
			Expect(cfg.Gateway.Port).To(Equal(8800))
			Expect(cfg.Metrics.Enabled).To(BeTrue())
		})

		It("should fail when the file does not exist", func() {
			_, err := loader.Load()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("does not exist"))
		})

		It("should fail on an empty file", func() {
			writeConfig("")
			_, err := loader.Load()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("empty"))
		})

		It("should fail on malformed YAML", func() {
			writeConfig("scanner: [not: valid")
			_, err := loader.Load()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("HasChanged", func() {
		It("should detect content changes between loads", func() {
			writeConfig(sampleConfig)
			_, err := loader.Load()
			Expect(err).NotTo(HaveOccurred())

			changed, err := loader.HasChanged()
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())

			writeConfig(sampleConfig + "\nnotifications:\n  webhook: https://example.com/hook\n")
			changed, err = loader.HasChanged()
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
		})
	})

	Describe("EffectiveRiskThreshold", func() {
		It("should apply the default when unset", func() {
			writeConfig("scanner:\n  log_level: info\n")
			cfg, err := loader.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Scanner.EffectiveRiskThreshold()).To(Equal(4))
		})
	})
})
