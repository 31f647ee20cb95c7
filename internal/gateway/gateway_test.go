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

package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bloathound/bloathound/internal/core/removal"
	"github.com/bloathound/bloathound/internal/core/session"
	"github.com/bloathound/bloathound/internal/scanner"
	"github.com/bloathound/bloathound/pkg/metrics"
	"github.com/bloathound/bloathound/pkg/models"
)

func TestGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gateway Suite")
}

// memStore is an in-memory Store for gateway tests.
type memStore struct {
	threats []models.ThreatRecord
	ignores map[string][]string
}

func newMemStore(threats ...models.ThreatRecord) *memStore {
	return &memStore{threats: threats, ignores: map[string][]string{}}
}

func (m *memStore) GetAllThreats(ctx context.Context) ([]models.ThreatRecord, error) {
	return m.threats, nil
}

func (m *memStore) UpsertThreats(ctx context.Context, records []models.ThreatRecord) error {
	m.threats = append(m.threats, records...)
	return nil
}

func (m *memStore) GetIgnoreList(ctx context.Context, user string) ([]string, error) {
	return m.ignores[user], nil
}

func (m *memStore) SaveIgnoreList(ctx context.Context, user string, items []string) error {
	m.ignores[user] = items
	return nil
}

func (m *memStore) AddToIgnoreList(ctx context.Context, user, item string) error {
	m.ignores[user] = append(m.ignores[user], item)
	return nil
}

func (m *memStore) RemoveFromIgnoreList(ctx context.Context, user, item string) error {
	var kept []string
	for _, it := range m.ignores[user] {
		if !strings.EqualFold(it, item) {
			kept = append(kept, it)
		}
	}
	m.ignores[user] = kept
	return nil
}

// hostState fakes the target machine: one inventory, one executor.
type hostState struct {
	installed []string
}

func (h *hostState) GetInventory(ctx context.Context) (*models.SystemProfile, error) {
	profile := &models.SystemProfile{}
	for _, name := range h.installed {
		profile.InstalledPrograms = append(profile.InstalledPrograms, models.InstalledProgram{Name: name})
	}
	return profile, nil
}

func (h *hostState) AttemptStandardUninstall(ctx context.Context, name string) (models.ExecutionResult, error) {
	var kept []string
	for _, n := range h.installed {
		if !strings.EqualFold(n, name) {
			kept = append(kept, n)
		}
	}
	h.installed = kept
	return models.ExecutionResult{Status: string(models.StatusSuccess)}, nil
}

func (h *hostState) OpenGuidedUI(ctx context.Context, name string) (models.ExecutionResult, error) {
	return models.ExecutionResult{Status: string(models.StatusUIOpened)}, nil
}

func (h *hostState) ForceRemove(ctx context.Context, name, path, publisher string) (models.ExecutionResult, error) {
	return models.ExecutionResult{Status: string(models.StatusSuccess)}, nil
}

func (h *hostState) TerminateProcess(ctx context.Context, pid int) (models.ExecutionResult, error) {
	return models.ExecutionResult{Status: string(models.StatusSuccess)}, nil
}

var _ = Describe("Gateway", func() {
	var (
		host    *hostState
		st      *memStore
		httpSrv *httptest.Server
		ws      *websocket.Conn
	)

	BeforeEach(func() {
		host = &hostState{installed: []string{"Delfino", "Notepad"}}
		st = newMemStore(models.ThreatRecord{
			ProgramName: "Delfino",
			GenericName: "delfino",
			RiskScore:   7,
			Reason:      "Delfino slows down the system.",
		})

		cache := session.NewCache()
		collector := metrics.NewCollector()
		sc := scanner.New(models.ScannerConfig{DefaultUser: "default"}, host, st, cache, collector, nil)
		orch := removal.NewOrchestrator(host, host)
		srv := NewServer(models.GatewayConfig{}, sc, st, cache, orch, collector, nil, "default")

		httpSrv = httptest.NewServer(srv.Handler())
		wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"

		var err error
		ws, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
		Expect(err).NotTo(HaveOccurred())

		// Discard the connected event.
		expectEvent(ws, "connected")
	})

	AfterEach(func() {
		ws.Close()
		httpSrv.Close()
	})

	send := func(cmd string, args interface{}) {
		frame := map[string]interface{}{"command": cmd}
		if args != nil {
			frame["args"] = args
		}
		Expect(ws.WriteJSON(frame)).To(Succeed())
	}

	It("should scan and report findings with masked names", func() {
		send("scan", nil)
		expectEvent(ws, "progress")
		data := expectEvent(ws, "scan_result")

		findings := data["findings"].([]interface{})
		Expect(findings).To(HaveLen(1))
		finding := findings[0].(map[string]interface{})
		Expect(finding["name"]).To(Equal("Delfino"))
		Expect(finding["masked_name"]).NotTo(Equal("Delfino"))
	})

	It("should run a phase A cleanup end to end", func() {
		send("scan", nil)
		expectEvent(ws, "progress")
		expectEvent(ws, "scan_result")

		send("phase_a_clean", map[string]interface{}{
			"targets": []map[string]interface{}{{"name": "Delfino"}},
		})
		expectEvent(ws, "progress")
		data := expectEvent(ws, "phase_a_complete")

		Expect(data["done"]).To(BeTrue())
		records := data["records"].([]interface{})
		record := records[0].(map[string]interface{})
		Expect(record["status"]).To(Equal(string(models.StatusSuccess)))
		Expect(host.installed).To(Equal([]string{"Notepad"}))
	})

	It("should verify removal using the cached scan context", func() {
		send("scan", nil)
		expectEvent(ws, "progress")
		expectEvent(ws, "scan_result")

		send("phase_a_clean", map[string]interface{}{
			"targets": []map[string]interface{}{{"name": "Delfino"}},
		})
		expectEvent(ws, "progress")
		expectEvent(ws, "phase_a_complete")

		send("verify_removal", map[string]interface{}{"program_name": "Delfino"})
		data := expectEvent(ws, "removal_verification")
		Expect(data["removed"]).To(BeTrue())
	})

	It("should refuse verification without a prior scan", func() {
		send("verify_removal", map[string]interface{}{"program_name": "Delfino"})
		expectEvent(ws, "error")
	})

	It("should list the knowledge base with masked reasons and ignore flags", func() {
		Expect(st.AddToIgnoreList(context.Background(), "default", "Delfino")).To(Succeed())

		send("view_db", nil)
		data := expectEvent(ws, "db_list")

		entries := data["entries"].([]interface{})
		Expect(entries).To(HaveLen(1))
		entry := entries[0].(map[string]interface{})
		Expect(entry["ignored"]).To(BeTrue())
		Expect(entry["reason"]).NotTo(ContainSubstring("Delfino"))
	})

	It("should reject threat submissions naming protected software", func() {
		send("add_threat", map[string]interface{}{
			"program_name": "Microsoft Defender Helper",
			"risk_score":   9,
		})
		expectEvent(ws, "error")
		Expect(st.threats).To(HaveLen(1))
	})

	It("should manage the ignore list", func() {
		send("add_ignore", map[string]interface{}{"item": "Delfino"})
		expectEvent(ws, "ignore_list_updated")
		Expect(st.ignores["default"]).To(ContainElement("Delfino"))

		send("remove_ignore", map[string]interface{}{"item": "Delfino"})
		expectEvent(ws, "ignore_list_updated")
		Expect(st.ignores["default"]).To(BeEmpty())
	})

	It("should reject malformed command args without mutating state", func() {
		send("save_ignore_list", "not an object")
		expectEvent(ws, "error")
		Expect(st.ignores["default"]).To(BeEmpty())
	})

	It("should generate a final report after cleanup", func() {
		send("scan", nil)
		expectEvent(ws, "progress")
		expectEvent(ws, "scan_result")

		send("phase_a_clean", map[string]interface{}{
			"targets": []map[string]interface{}{{"name": "Delfino"}},
		})
		expectEvent(ws, "progress")
		expectEvent(ws, "phase_a_complete")

		send("final_report", map[string]interface{}{"language": "en"})
		data := expectEvent(ws, "report_generated")
		Expect(data["text"]).To(ContainSubstring("Cleanup Report"))
	})

	It("should report unknown commands", func() {
		send("does_not_exist", nil)
		expectEvent(ws, "error")
	})
})

// expectEvent reads frames until one of the given type arrives and returns
// its data payload.
func expectEvent(ws *websocket.Conn, eventType string) map[string]interface{} {
	deadline := time.Now().Add(5 * time.Second)
	Expect(ws.SetReadDeadline(deadline)).To(Succeed())

	for {
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		err := ws.ReadJSON(&frame)
		Expect(err).NotTo(HaveOccurred())

		if frame.Type != eventType {
			continue
		}
		if len(frame.Data) == 0 {
			return nil
		}
		var data map[string]interface{}
		Expect(json.Unmarshal(frame.Data, &data)).To(Succeed())
		return data
	}
}
