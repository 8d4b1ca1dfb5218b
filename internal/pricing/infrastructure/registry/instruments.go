// Package registry 进程内的证券目录、一档行情与持仓簿，作为领域模型的实时提供者
package registry

import (
	"sync"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

// InstrumentRegistry 证券目录，Lookup 结果保持注册顺序
type InstrumentRegistry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*domain.Instrument
}

var _ domain.SecurityProvider = (*InstrumentRegistry)(nil)

func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{byID: make(map[string]*domain.Instrument)}
}

// Put 注册或替换证券，替换时保留原有顺序
func (r *InstrumentRegistry) Put(inst *domain.Instrument) {
	if inst == nil || inst.ID == "" {
		return
	}
	cp := *inst
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[cp.ID]; !ok {
		r.order = append(r.order, cp.ID)
	}
	r.byID[cp.ID] = &cp
}

// Remove 移除证券
func (r *InstrumentRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *InstrumentRegistry) LookupByID(id string) (*domain.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byID[id]
	return inst, ok
}

func (r *InstrumentRegistry) Lookup(criteria domain.Criteria) []*domain.Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Instrument, 0)
	for _, id := range r.order {
		if inst := r.byID[id]; criteria.Match(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// All 全部证券
func (r *InstrumentRegistry) All() []*domain.Instrument {
	return r.Lookup(domain.Criteria{})
}

func (r *InstrumentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
