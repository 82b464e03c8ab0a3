// Package inmemory is the change history kept in process memory.
//
// It is for a single process deployment (and for tests): records are lost on exit.
package inmemory

import (
	"context"
	"sync"

	"github.com/opst/modelfab/pkg/domain/changeset"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
)

type history struct {
	m        sync.Mutex
	version  int64
	changes  []changeset.Info
	deployed map[string]int64
}

func New() kdb.Interface {
	return &history{deployed: map[string]int64{}}
}

func (h *history) Version(context.Context) (int64, error) {
	h.m.Lock()
	defer h.m.Unlock()
	return h.version, nil
}

func (h *history) Record(_ context.Context, expected int64, changes []changeset.Info) (int64, error) {
	h.m.Lock()
	defer h.m.Unlock()

	if h.version != expected {
		return 0, kdb.ErrStaleVersion
	}
	h.version += 1
	for _, c := range changes {
		c.Id = int64(len(h.changes) + 1)
		c.Version = h.version
		if c.Status == "" {
			c.Status = changeset.Applied
		}
		h.changes = append(h.changes, c)
	}
	return h.version, nil
}

func (h *history) Changes(_ context.Context, after int64, until int64) ([]changeset.Info, error) {
	h.m.Lock()
	defer h.m.Unlock()

	out := []changeset.Info{}
	for _, c := range h.changes {
		if c.Version <= after || (0 <= until && until < c.Version) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *history) DeployedVersions(context.Context) (map[string]int64, error) {
	h.m.Lock()
	defer h.m.Unlock()

	out := make(map[string]int64, len(h.deployed))
	for k, v := range h.deployed {
		out[k] = v
	}
	return out, nil
}

func (h *history) MarkDeployed(_ context.Context, nodeIds []string, version int64) error {
	h.m.Lock()
	defer h.m.Unlock()

	for _, id := range nodeIds {
		if current, ok := h.deployed[id]; !ok || current < version {
			h.deployed[id] = version
		}
	}
	return nil
}
