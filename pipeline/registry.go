// Package pipeline assembles the named stages of a config branch into a runnable pipeline and
// runs it over samples.
package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/qianjinfighter/DeepViewAgg/config"
	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// ErrUnknownStage is returned when a config names a stage nobody registered.
var ErrUnknownStage = errors.New("unknown stage")

// NewUnknownStageError returns an ErrUnknownStage naming the stage.
func NewUnknownStageError(name string) error {
	return errors.Wrapf(ErrUnknownStage, "%q", name)
}

// Stage transforms one sample. A stage never mutates its input sample; it returns a new one
// that may share unchanged parts with the input.
type Stage interface {
	Name() string
	Apply(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error)
}

// StageContext is what a stage constructor knows about where it runs.
type StageContext struct {
	Config *config.Config
	Branch config.Branch
	Logger logging.Logger
}

// StageConstructor builds a stage from its attributes.
type StageConstructor func(sc StageContext, attributes utils.AttributeMap) (Stage, error)

// StageRegistration describes a stage available to configs.
type StageRegistration struct {
	Constructor StageConstructor
	Description string
	// Attributes is a pointer to the zero value of the stage's attribute struct, used for
	// documentation.
	Attributes interface{}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]StageRegistration{}
)

// RegisterStage registers a stage under a name. It panics on duplicate or invalid
// registrations, which are programming errors.
func RegisterStage(name string, reg StageRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := registry[name]; old {
		panic(errors.Errorf("trying to register two stages with same name: %s", name))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for stage: %s", name))
	}
	registry[name] = reg
}

// LookupStage returns the registration of a stage.
func LookupStage(name string) (StageRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[name]
	return reg, ok
}

// RegisteredStages returns the names of every registered stage, sorted.
func RegisteredStages() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// StageSchemas returns the JSON schema of every registered stage's attributes.
func StageSchemas() map[string]*jsonschema.Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return lo.MapValues(registry, func(reg StageRegistration, _ string) *jsonschema.Schema {
		if reg.Attributes == nil {
			return jsonschema.Reflect(&struct{}{})
		}
		return jsonschema.Reflect(reg.Attributes)
	})
}
