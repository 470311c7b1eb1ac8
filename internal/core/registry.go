package core

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// catalog holds every module known to the binary, filled from init().
type catalog struct {
	mu   sync.RWMutex
	byID map[string]ModuleInfo
}

var modules = &catalog{byID: make(map[string]ModuleInfo)}

func (c *catalog) add(info ModuleInfo) error {
	switch {
	case info.ID == "":
		return fmt.Errorf("module ID must not be empty")
	case info.New == nil:
		return fmt.Errorf("module %s: New function must not be nil", info.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byID[string(info.ID)]; dup {
		return fmt.Errorf("module already registered: %s", info.ID)
	}
	c.byID[string(info.ID)] = info
	return nil
}

// RegisterModule adds instance's ModuleInfo to the catalog. It panics on an
// empty ID, a nil constructor or a duplicate ID, so it belongs in init().
func RegisterModule(instance Module) {
	if err := modules.add(instance.ModuleInfo()); err != nil {
		panic(err.Error())
	}
}

// GetModule returns the ModuleInfo registered under id.
func GetModule(id string) (ModuleInfo, bool) {
	modules.mu.RLock()
	defer modules.mu.RUnlock()
	info, ok := modules.byID[id]
	return info, ok
}

// GetModules returns all registered modules in start-up order.
func GetModules() []ModuleInfo {
	modules.mu.RLock()
	infos := slices.Collect(maps.Values(modules.byID))
	modules.mu.RUnlock()

	slices.SortFunc(infos, CompareStartOrder)
	return infos
}

// CompareStartOrder orders modules by stage, then by ID.
func CompareStartOrder(a, b ModuleInfo) int {
	return cmp.Or(cmp.Compare(a.Stage, b.Stage), cmp.Compare(a.ID, b.ID))
}

// resetRegistry empties the catalog. Tests only.
func resetRegistry() {
	modules.mu.Lock()
	defer modules.mu.Unlock()
	clear(modules.byID)
}
