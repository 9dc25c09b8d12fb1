package tierpolicy

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// yamlTierDefaults mirrors models.TierDefaults with string tags for the
// operator-editable YAML file; ProviderKind/DomainTier round-trip as plain
// strings so the file reads naturally without custom YAML marshalers.
type yamlTierDefaults struct {
	AllowPaid                 bool     `yaml:"allowPaid"`
	PreferredProvider         string   `yaml:"preferredProvider,omitempty"`
	DisabledProviders         []string `yaml:"disabledProviders,omitempty"`
	TimeoutMs                 int      `yaml:"timeoutMs"`
	SLOTarget                 float64  `yaml:"sloTarget"`
	StopAfterPreferredFailure bool     `yaml:"stopAfterPreferredFailure"`
}

type yamlFile struct {
	Tiers map[string]yamlTierDefaults `yaml:"tiers"`
}

// LoadDefaultsFromFile parses an operator-editable tier-policy table,
// falling back to NewDefaults()'s built-in table for any tier the file
// omits.
func LoadDefaultsFromFile(path string) (*Defaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tierpolicy: read %s: %w", path, err)
	}
	var doc yamlFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tierpolicy: parse %s: %w", path, err)
	}

	defaults := NewDefaults()
	for tierName, y := range doc.Tiers {
		tier := models.DomainTier(tierName)
		td := models.TierDefaults{
			Tier: tier, AllowPaid: y.AllowPaid, TimeoutMs: y.TimeoutMs, SLOTarget: y.SLOTarget,
			StopAfterPreferredFailure: y.StopAfterPreferredFailure,
		}
		if y.PreferredProvider != "" {
			p := models.ProviderKind(y.PreferredProvider)
			td.PreferredProvider = &p
		}
		for _, d := range y.DisabledProviders {
			td.DisabledProviders = append(td.DisabledProviders, models.ProviderKind(d))
		}
		defaults.byTier[tier] = td
	}
	return defaults, nil
}

var (
	_ Resolver = (*Defaults)(nil)
	_ Resolver = (*WatchableDefaults)(nil)
)

// WatchableDefaults holds a *Defaults behind an atomic pointer so the
// fsnotify watcher can swap in a freshly parsed table without callers
// needing to re-fetch it; Resolve always reads the current snapshot.
type WatchableDefaults struct {
	current atomic.Pointer[Defaults]
}

func NewWatchableDefaults(initial *Defaults) *WatchableDefaults {
	w := &WatchableDefaults{}
	w.current.Store(initial)
	return w
}

func (w *WatchableDefaults) Resolve(tier models.DomainTier, override Override) models.TierPolicy {
	return w.current.Load().Resolve(tier, override)
}

// Watch reloads path whenever fsnotify reports a write, logging (via onError)
// rather than failing the process if a reload produces an invalid file.
func (w *WatchableDefaults) Watch(path string, onError func(error), onReload func()) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tierpolicy: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("tierpolicy: watch %s: %w", path, err)
	}

	var once sync.Once
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				next, err := LoadDefaultsFromFile(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				w.current.Store(next)
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return func() error {
		var closeErr error
		once.Do(func() { closeErr = watcher.Close() })
		return closeErr
	}, nil
}
