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

package removal

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bloathound/bloathound/pkg/models"
)

func TestRemoval(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Removal Suite")
}

// fakeExecutor scripts per-program outcomes for each phase.
type fakeExecutor struct {
	uninstallErr    map[string]error
	uninstallStatus map[string]string
	guidedErr       map[string]error
	forceStatus     map[string]string
	forceErr        map[string]error

	terminated []int
	uninstalls []string
	forced     []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		uninstallErr:    map[string]error{},
		uninstallStatus: map[string]string{},
		guidedErr:       map[string]error{},
		forceStatus:     map[string]string{},
		forceErr:        map[string]error{},
	}
}

func (f *fakeExecutor) AttemptStandardUninstall(ctx context.Context, name string) (models.ExecutionResult, error) {
	f.uninstalls = append(f.uninstalls, name)
	if err := f.uninstallErr[name]; err != nil {
		return models.ExecutionResult{}, err
	}
	status := f.uninstallStatus[name]
	if status == "" {
		status = string(models.StatusSuccess)
	}
	return models.ExecutionResult{Status: status}, nil
}

func (f *fakeExecutor) OpenGuidedUI(ctx context.Context, name string) (models.ExecutionResult, error) {
	if err := f.guidedErr[name]; err != nil {
		return models.ExecutionResult{}, err
	}
	return models.ExecutionResult{Status: string(models.StatusUIOpened)}, nil
}

func (f *fakeExecutor) ForceRemove(ctx context.Context, name, installPath, publisher string) (models.ExecutionResult, error) {
	f.forced = append(f.forced, name)
	if err := f.forceErr[name]; err != nil {
		return models.ExecutionResult{}, err
	}
	status := f.forceStatus[name]
	if status == "" {
		status = string(models.StatusSuccess)
	}
	return models.ExecutionResult{Status: status, CleanedEntries: 2}, nil
}

func (f *fakeExecutor) TerminateProcess(ctx context.Context, pid int) (models.ExecutionResult, error) {
	f.terminated = append(f.terminated, pid)
	return models.ExecutionResult{Status: string(models.StatusSuccess)}, nil
}

// fakeInventory serves a scripted sequence of inventory snapshots.
type fakeInventory struct {
	installed []string
	processes []string
	err       error
}

func (f *fakeInventory) GetInventory(ctx context.Context) (*models.SystemProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	profile := &models.SystemProfile{}
	for _, name := range f.installed {
		profile.InstalledPrograms = append(profile.InstalledPrograms, models.InstalledProgram{Name: name})
	}
	for _, name := range f.processes {
		profile.RunningProcesses = append(profile.RunningProcesses, models.RunningProcess{Name: name})
	}
	return profile, nil
}

func (f *fakeInventory) remove(name string) {
	var kept []string
	for _, n := range f.installed {
		if !strings.EqualFold(n, name) {
			kept = append(kept, n)
		}
	}
	f.installed = kept
}

var _ = Describe("Orchestrator", func() {
	var (
		executor  *fakeExecutor
		inventory *fakeInventory
		orch      *Orchestrator
		ctx       context.Context
	)

	BeforeEach(func() {
		executor = newFakeExecutor()
		inventory = &fakeInventory{}
		orch = NewOrchestrator(executor, inventory)
		ctx = context.Background()
	})

	Describe("RunPhaseA", func() {
		It("should terminate running processes before uninstalling", func() {
			records := orch.RunPhaseA(ctx, []Item{{Name: "Delfino", PID: 1234}})
			Expect(executor.terminated).To(Equal([]int{1234}))
			Expect(records).To(HaveLen(1))
			Expect(records[0].Status).To(Equal(models.StatusSuccess))
		})

		It("should route missing removal info to manual handling", func() {
			executor.uninstallErr["Ghost"] = models.ErrNoRemovalInfo

			records := orch.RunPhaseA(ctx, []Item{{Name: "Ghost"}})
			Expect(records[0].Status).To(Equal(models.StatusManualRequired))
		})

		It("should report still_exists when the uninstaller lies", func() {
			inventory.installed = []string{"Zombie"}

			records := orch.RunPhaseA(ctx, []Item{{Name: "Zombie"}})
			Expect(records[0].Status).To(Equal(models.StatusStillExists))
		})

		It("should not abort the batch on a single failure", func() {
			executor.uninstallErr["Bad"] = errors.New("exec blew up")

			records := orch.RunPhaseA(ctx, []Item{{Name: "Bad"}, {Name: "Good"}})
			Expect(records).To(HaveLen(2))
			Expect(records[0].Status).To(Equal(models.StatusFailure))
			Expect(records[1].Status).To(Equal(models.StatusSuccess))
		})

		It("should mask program names in messages", func() {
			records := orch.RunPhaseA(ctx, []Item{{Name: "Delfino"}})
			Expect(records[0].Message).NotTo(ContainSubstring("Delfino"))
			Expect(records[0].MaskedName).NotTo(Equal("Delfino"))
		})
	})

	Describe("RunPhaseB", func() {
		It("should complete items as ui_opened with the verdict deferred", func() {
			records := orch.RunPhaseB(ctx, []Item{{Name: "Delfino"}})
			Expect(records[0].Status).To(Equal(models.StatusUIOpened))
		})

		It("should fail items whose UI cannot be opened", func() {
			executor.guidedErr["Delfino"] = errors.New("no settings app")

			records := orch.RunPhaseB(ctx, []Item{{Name: "Delfino"}})
			Expect(records[0].Status).To(Equal(models.StatusFailure))
		})
	})

	Describe("RunPhaseC", func() {
		It("should force remove and report cleaned entries", func() {
			records := orch.RunPhaseC(ctx, []Item{{Name: "Delfino", PID: 77}})
			Expect(executor.terminated).To(Equal([]int{77}))
			Expect(executor.forced).To(Equal([]string{"Delfino"}))
			Expect(records[0].Status).To(Equal(models.StatusSuccess))
			Expect(records[0].Message).To(ContainSubstring("2 entries cleaned"))
		})

		It("should refuse protected targets before any destructive action", func() {
			records := orch.RunPhaseC(ctx, []Item{{Name: "Anything", Publisher: "Microsoft Corporation"}})
			Expect(executor.forced).To(BeEmpty())
			Expect(executor.terminated).To(BeEmpty())
			Expect(records[0].Status).To(Equal(models.StatusFailure))
			Expect(records[0].Message).To(Equal(models.ErrProtectedTarget.Error()))
		})
	})

	Describe("Verify", func() {
		matchCtx := &models.MatchContext{
			MatchedThreat: models.ThreatRecord{
				ProgramName: "Delfino",
				GenericName: "delfino",
			},
		}

		It("should fail explicitly without a match context", func() {
			_, err := orch.Verify(ctx, "Delfino", nil)
			Expect(err).To(MatchError(models.ErrContextMissing))
		})

		It("should report removed when nothing matches the fresh inventory", func() {
			inventory.installed = []string{"Unrelated Program"}

			removed, err := orch.Verify(ctx, "Delfino", matchCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeTrue())
		})

		It("should detect an exact-name survivor", func() {
			inventory.installed = []string{"Delfino"}

			removed, err := orch.Verify(ctx, "Delfino", matchCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeFalse())
		})

		It("should detect a renamed survivor via the cached record", func() {
			inventory.installed = []string{"Delfino-x64 v3.1"}

			removed, err := orch.Verify(ctx, "Delfino", matchCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeFalse())
		})

		It("should detect a surviving process", func() {
			inventory.processes = []string{"delfino.exe"}
			procCtx := &models.MatchContext{
				MatchedThreat: models.ThreatRecord{
					ProgramName:  "Delfino",
					ProcessNames: "delfino.exe",
				},
			}

			removed, err := orch.Verify(ctx, "Delfino", procCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeFalse())
		})

		It("should surface agent unavailability", func() {
			inventory.err = errors.New("dial refused")

			_, err := orch.Verify(ctx, "Delfino", matchCtx)
			Expect(err).To(MatchError(models.ErrAgentUnavailable))
		})
	})
})

var _ = Describe("Batch", func() {
	var (
		executor  *fakeExecutor
		inventory *fakeInventory
		batch     *Batch
		ctx       context.Context
	)

	BeforeEach(func() {
		executor = newFakeExecutor()
		inventory = &fakeInventory{}
		batch = nil
		ctx = context.Background()
	})

	newBatch := func(items ...Item) *Batch {
		return NewBatch(NewOrchestrator(executor, inventory), items)
	}

	It("should finish immediately when phase A succeeds for everything", func() {
		batch = newBatch(Item{Name: "Delfino"})

		records, done := batch.Advance(ctx)
		Expect(records[0].Status).To(Equal(models.StatusSuccess))
		Expect(done).To(BeTrue())
	})

	It("should deduplicate targets by name", func() {
		batch = newBatch(Item{Name: "Delfino"}, Item{Name: "DELFINO"})
		records, _ := batch.Advance(ctx)
		Expect(records).To(HaveLen(1))
	})

	It("should never retry a succeeded item at a later phase", func() {
		executor.uninstallErr["Stubborn"] = errors.New("boom")
		batch = newBatch(Item{Name: "Easy"}, Item{Name: "Stubborn"})

		_, done := batch.Advance(ctx)
		Expect(done).To(BeFalse())

		batch.Advance(ctx) // guided UI phase
		records, _ := batch.Advance(ctx)

		for _, r := range records {
			if r.Name == "Easy" {
				Expect(r.Phase).To(Equal(models.PhaseStandard))
				Expect(r.Status).To(Equal(models.StatusSuccess))
			}
		}
		Expect(executor.forced).NotTo(ContainElement("Easy"))
	})

	It("should settle ui_opened items from a fresh inventory before escalating", func() {
		executor.uninstallStatus["Manual"] = string(models.StatusFailure)
		inventory.installed = []string{"Manual"}
		batch = newBatch(Item{Name: "Manual"})

		batch.Advance(ctx) // phase A fails
		batch.Advance(ctx) // phase B opens the UI

		// The user completes the uninstall in the UI.
		inventory.remove("Manual")

		records, done := batch.CheckStatus(ctx)
		Expect(records[0].Status).To(Equal(models.StatusSuccess))
		Expect(done).To(BeTrue())
		Expect(executor.forced).To(BeEmpty())
	})

	It("should end unremovable items as manual work after the forced phase", func() {
		executor.uninstallErr["Tough"] = errors.New("no")
		executor.guidedErr["Tough"] = errors.New("no ui")
		executor.forceStatus["Tough"] = string(models.StatusFailure)
		batch = newBatch(Item{Name: "Tough"})

		batch.Advance(ctx)
		batch.Advance(ctx)
		records, done := batch.Advance(ctx)

		Expect(done).To(BeTrue())
		Expect(records[0].Status).To(Equal(models.StatusManualRequired))
		Expect(records[0].Phase).To(Equal(models.PhaseForced))
	})

	It("should report records in submission order", func() {
		batch = newBatch(Item{Name: "Bravo"}, Item{Name: "Alpha"})
		records, _ := batch.Advance(ctx)
		Expect(records[0].Name).To(Equal("Bravo"))
		Expect(records[1].Name).To(Equal("Alpha"))
	})
})
