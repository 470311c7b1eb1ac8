package core

import (
	"slices"
	"testing"
)

func TestRegisterModule_RejectsInvalid(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&trackingModule{id: "test.once"})

	cases := map[string]Module{
		"duplicate": &trackingModule{id: "test.once"},
		"empty id":  &trackingModule{},
	}
	for name, mod := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			RegisterModule(mod)
		})
	}
}

func TestGetModules_StartOrder(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&trackingModule{id: "gateway.http", stage: StageFrontend})
	RegisterModule(&trackingModule{id: "store.sqlite", stage: StageStorage})
	RegisterModule(&trackingModule{id: "scheduler.cron", stage: StageWorkers})
	RegisterModule(&trackingModule{id: "store.memory", stage: StageStorage})

	var got []ModuleID
	for _, info := range GetModules() {
		got = append(got, info.ID)
	}
	want := []ModuleID{"store.memory", "store.sqlite", "scheduler.cron", "gateway.http"}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if _, ok := GetModule("store.sqlite"); !ok {
		t.Error("GetModule missed a registered module")
	}
}
