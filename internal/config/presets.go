package config

import (
	"slices"

	"stress-client/internal/workload"
)

// Preset は名前付きの負荷設定
type Preset struct {
	Name        string
	Description string
	Weights     workload.Weights
	BatchSize   int
}

// DefaultPreset はオプション省略時と同じ負荷を返す
func DefaultPreset() Preset {
	return Preset{
		Name:        "default",
		Description: "Reads 5, writes 3, deletes 2",
		Weights:     workload.DefaultWeights(),
		BatchSize:   100,
	}
}

// ReadHeavyPreset は読み込み中心の負荷を返す
func ReadHeavyPreset() Preset {
	return Preset{
		Name:        "read-heavy",
		Description: "Mostly point reads over a slowly growing table",
		Weights:     workload.Weights{Read: 18, Write: 1, Delete: 1},
		BatchSize:   10,
	}
}

// WriteHeavyPreset は書き込み中心の負荷を返す
// 大きめのバッチで挿入スループットを見る
func WriteHeavyPreset() Preset {
	return Preset{
		Name:        "write-heavy",
		Description: "Mostly batched inserts",
		Weights:     workload.Weights{Read: 1, Write: 8, Delete: 1},
		BatchSize:   500,
	}
}

// ChurnPreset は挿入と削除を同程度に繰り返す負荷を返す
func ChurnPreset() Preset {
	return Preset{
		Name:        "churn",
		Description: "Insert and delete at the same rate, small batches",
		Weights:     workload.Weights{Read: 2, Write: 4, Delete: 4},
		BatchSize:   1,
	}
}

// BootstrapPreset は書き込みのみの負荷を返す
func BootstrapPreset() Preset {
	return Preset{
		Name:        "bootstrap",
		Description: "Insert only, fills the table",
		Weights:     workload.Weights{Write: 1},
		BatchSize:   1000,
	}
}

var presets = map[string]func() Preset{
	"default":     DefaultPreset,
	"read-heavy":  ReadHeavyPreset,
	"write-heavy": WriteHeavyPreset,
	"churn":       ChurnPreset,
	"bootstrap":   BootstrapPreset,
}

// GetPreset は名前からプリセットを取得する
func GetPreset(name string) (Preset, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Preset{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apply はプリセットの負荷設定をcfgに反映する
func (p Preset) Apply(cfg *Config) {
	cfg.Weights = p.Weights
	cfg.BatchSize = p.BatchSize
}
