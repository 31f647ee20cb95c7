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
	"strings"

	"github.com/bloathound/bloathound/pkg/models"
)

// Batch tracks a set of items through the phase sequence. An item that
// reaches success at any phase is terminal and is never retried at a
// later, more destructive phase; items that fail keep escalating until
// they run out of phases and become manual work.
type Batch struct {
	orchestrator *Orchestrator
	order        []string
	items        map[string]*itemState
	nextPhase    models.RemovalPhase
}

type itemState struct {
	item   Item
	record models.RemovalRecord
	done   bool
}

// NewBatch prepares a batch in the pending state.
func NewBatch(o *Orchestrator, items []Item) *Batch {
	b := &Batch{
		orchestrator: o,
		items:        make(map[string]*itemState, len(items)),
		nextPhase:    models.PhaseStandard,
	}
	for _, item := range items {
		key := strings.ToLower(item.Name)
		if _, dup := b.items[key]; dup {
			continue
		}
		b.order = append(b.order, key)
		b.items[key] = &itemState{
			item: item,
			record: models.RemovalRecord{
				Name:  item.Name,
				Phase: models.PhasePending,
			},
		}
	}
	return b
}

// Advance runs the next phase for every item that is not yet terminal and
// returns the batch's current records. Done reports whether every item
// has reached a terminal state.
func (b *Batch) Advance(ctx context.Context) (records []models.RemovalRecord, done bool) {
	b.resolveDeferred(ctx)
	pending := b.pendingItems()

	if len(pending) > 0 {
		var results []models.RemovalRecord
		switch b.nextPhase {
		case models.PhaseStandard:
			results = b.orchestrator.RunPhaseA(ctx, pending)
		case models.PhaseGuidedUI:
			results = b.orchestrator.RunPhaseB(ctx, pending)
		case models.PhaseForced:
			results = b.orchestrator.RunPhaseC(ctx, pending)
		}
		b.apply(results)
	}

	b.nextPhase = phaseAfter(b.nextPhase)
	return b.Records(), b.isDone()
}

// CheckStatus settles undecided items against a fresh inventory without
// running the next phase.
func (b *Batch) CheckStatus(ctx context.Context) (records []models.RemovalRecord, done bool) {
	b.resolveDeferred(ctx)
	return b.Records(), b.isDone()
}

func phaseAfter(p models.RemovalPhase) models.RemovalPhase {
	switch p {
	case models.PhaseStandard:
		return models.PhaseGuidedUI
	case models.PhaseGuidedUI:
		return models.PhaseForced
	default:
		return models.PhaseCompleted
	}
}

// resolveDeferred settles items the guided-UI phase left undecided: a
// fresh inventory snapshot is the verdict the phase itself could not
// give. Items still installed stay pending and escalate.
func (b *Batch) resolveDeferred(ctx context.Context) {
	for _, key := range b.order {
		st := b.items[key]
		if st.done || st.record.Status != models.StatusUIOpened {
			continue
		}
		installed, err := b.orchestrator.isInstalled(ctx, st.item.Name)
		if err != nil {
			continue
		}
		if !installed {
			st.record.Status = models.StatusSuccess
			st.record.Message = "Removed via the uninstall UI"
			st.done = true
		}
	}
}

func (b *Batch) pendingItems() []Item {
	var pending []Item
	for _, key := range b.order {
		if st := b.items[key]; !st.done {
			pending = append(pending, st.item)
		}
	}
	return pending
}

func (b *Batch) apply(results []models.RemovalRecord) {
	for _, rec := range results {
		st, ok := b.items[strings.ToLower(rec.Name)]
		if !ok {
			continue
		}
		st.record = rec
		switch rec.Status {
		case models.StatusSuccess:
			st.done = true
		case models.StatusManualRequired:
			st.done = true
		default:
			// failure, still_exists and ui_opened escalate; after the
			// forced phase there is nothing left but manual work.
			if rec.Phase == models.PhaseForced {
				st.record.Status = models.StatusManualRequired
				st.done = true
			}
		}
	}
}

func (b *Batch) isDone() bool {
	if b.nextPhase == models.PhaseCompleted {
		return true
	}
	for _, key := range b.order {
		if !b.items[key].done {
			return false
		}
	}
	return true
}

// NextPhase reports the phase the next Advance call will run.
func (b *Batch) NextPhase() models.RemovalPhase {
	return b.nextPhase
}

// Records returns the current per-item records in submission order.
func (b *Batch) Records() []models.RemovalRecord {
	records := make([]models.RemovalRecord, 0, len(b.order))
	for _, key := range b.order {
		records = append(records, b.items[key].record)
	}
	return records
}
