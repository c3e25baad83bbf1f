package script

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/fogleman/ease"
	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/Kruhlmann/imgfloat-j/canvas"
	"github.com/Kruhlmann/imgfloat-j/util"
)

// A Reporter surfaces code asset failures to the operator channel.
type Reporter func(assetID string, stage string, err error)

// A Runtime hosts validated code assets. Each asset gets its own interpreter
// with a restricted capability surface; Init runs once per load, Tick once
// per compositor frame. A failing program is disabled until its source url
// changes, never the render loop.
//
// Capability surface bound into every script as globals:
//
//	surface  *gg.Context                 the shared drawing surface
//	assets   func() []canvas.Asset      read view of the channel registry
//	channel  string                      channel identity
//	state    map[string]interface{}      mutable bag persisting across calls
//	Lerp, Ramp, EaseInOutQuad, EaseOutElastic, Hex    animation helpers
type Runtime struct {
	channel  string
	surface  *gg.Context
	assets   func() []canvas.Asset
	fetch    canvas.Fetcher
	post     func(func())
	report   Reporter
	programs map[string]*program
	log      zerolog.Logger
}

type program struct {
	url     string
	init    reflect.Value
	tick    reflect.Value
	state   map[string]interface{}
	loading bool
	failed  bool
	ready   bool
}

// NewRuntime creates a Runtime for one channel surface.
func NewRuntime(channel string, surface *gg.Context, assets func() []canvas.Asset, fetch canvas.Fetcher, post func(func()), report Reporter, log zerolog.Logger) *Runtime {
	r := new(Runtime)
	r.channel = channel
	r.surface = surface
	r.assets = assets
	r.fetch = fetch
	r.post = post
	r.report = report
	r.programs = make(map[string]*program)
	r.log = log.With().Str("component", "script").Logger()
	return r
}

// Tick runs one frame of the asset's script. The first call for an asset (or
// after its url changed) starts the load; until Init has run, ticks are
// no-ops. A program that failed stays skipped.
func (r *Runtime) Tick(a canvas.Asset) {
	p, ok := r.programs[a.ID]
	if ok && p.url != a.URL {
		delete(r.programs, a.ID)
		ok = false
	}
	if !ok {
		p = &program{url: a.URL, loading: true, state: make(map[string]interface{})}
		r.programs[a.ID] = p
		r.load(a, p)
		return
	}
	if p.failed || p.loading || !p.ready {
		return
	}
	if err := r.call(p.tick); err != nil {
		p.failed = true
		r.fail(a.ID, "tick", err)
	}
}

// Drop discards the loaded program for a removed asset.
func (r *Runtime) Drop(id string) {
	delete(r.programs, id)
}

func (r *Runtime) load(a canvas.Asset, p *program) {
	go func() {
		src, err := r.fetch(a.URL)
		r.post(func() {
			cur, ok := r.programs[a.ID]
			if !ok || cur != p {
				// Deleted or replaced while the fetch was pending.
				return
			}
			p.loading = false
			if err != nil {
				p.failed = true
				r.fail(a.ID, "load", err)
				return
			}
			r.boot(a, p, string(src))
		})
	}()
}

// boot evaluates the source in a fresh interpreter, resolves the entry
// points and runs Init exactly once. The capability package is evaluated
// into lowercase globals first so the script sees them without an import.
func (r *Runtime) boot(a canvas.Asset, p *program, src string) {
	in := interp.New(interp.Options{})
	if err := in.Use(sandboxSymbols()); err != nil {
		p.failed = true
		r.fail(a.ID, "load", err)
		return
	}
	if err := in.Use(r.capabilities()); err != nil {
		p.failed = true
		r.fail(a.ID, "load", err)
		return
	}
	if _, err := in.Eval(capabilityPrelude); err != nil {
		p.failed = true
		r.fail(a.ID, "load", err)
		return
	}
	// The state bag lives inside the interpreter so scripts mutate it as a
	// native map; the host keeps the same map for inspection and reporting.
	sv, err := in.Eval("state")
	if err != nil {
		p.failed = true
		r.fail(a.ID, "load", err)
		return
	}
	bag, ok := sv.Interface().(map[string]interface{})
	if !ok {
		p.failed = true
		r.fail(a.ID, "load", fmt.Errorf("state bag has unexpected type %T", sv.Interface()))
		return
	}
	p.state = bag

	if _, err := in.Eval(src); err != nil {
		p.failed = true
		r.fail(a.ID, "load", err)
		return
	}
	initFn, err := lookupEntryPoint(in, "Init")
	if err != nil {
		p.failed = true
		r.fail(a.ID, "load", err)
		return
	}
	tickFn, err := lookupEntryPoint(in, "Tick")
	if err != nil {
		p.failed = true
		r.fail(a.ID, "load", err)
		return
	}
	p.init = initFn
	p.tick = tickFn
	if err := r.call(p.init); err != nil {
		p.failed = true
		r.fail(a.ID, "init", err)
		return
	}
	p.ready = true
	r.log.Info().Str("asset", a.ID).Str("name", a.Name).Msg("code asset loaded")
}

// capabilities is the capability surface, exported as a binary package the
// prelude rebinds into globals.
func (r *Runtime) capabilities() interp.Exports {
	return interp.Exports{
		"imgfloat/imgfloat": map[string]reflect.Value{
			"Surface":        reflect.ValueOf(r.surface),
			"Assets":         reflect.ValueOf(r.assets),
			"Channel":        reflect.ValueOf(r.channel),
			"Lerp":           reflect.ValueOf(util.Lerp),
			"Ramp":           reflect.ValueOf(util.GenerateRamp),
			"EaseInOutQuad":  reflect.ValueOf(ease.InOutQuad),
			"EaseOutElastic": reflect.ValueOf(ease.OutElastic),
			"Hex":            reflect.ValueOf(mustHex),
		},
	}
}

// capabilityPrelude brings the capability package into the script's scope
// under the stable global names, before the script source is evaluated.
const capabilityPrelude = `import "imgfloat"

var (
	surface        = imgfloat.Surface
	assets         = imgfloat.Assets
	channel        = imgfloat.Channel
	Lerp           = imgfloat.Lerp
	Ramp           = imgfloat.Ramp
	EaseInOutQuad  = imgfloat.EaseInOutQuad
	EaseOutElastic = imgfloat.EaseOutElastic
	Hex            = imgfloat.Hex
)

var state = map[string]interface{}{}
`

// mustHex parses a hex color for scripts, falling back to white.
func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	return c
}

// lookupEntryPoint resolves an entry point the same way the validator
// accepts it: an exported top-level binding, or an Exports map entry matched
// case-insensitively.
func lookupEntryPoint(in *interp.Interpreter, name string) (reflect.Value, error) {
	if v, err := in.Eval(name); err == nil && v.Kind() == reflect.Func {
		return v, nil
	}
	// Exports literal authoring style.
	if m, err := in.Eval("Exports"); err == nil && m.Kind() == reflect.Map {
		for _, key := range m.MapKeys() {
			if key.Kind() != reflect.String || !strings.EqualFold(key.String(), name) {
				continue
			}
			f := m.MapIndex(key)
			if f.Kind() == reflect.Interface {
				f = f.Elem()
			}
			if f.Kind() == reflect.Func {
				return f, nil
			}
		}
	}
	return reflect.Value{}, fmt.Errorf("missing function: %s", strings.ToLower(name))
}

// call invokes an entry point, containing panics so a broken script can
// never take down the render loop.
func (r *Runtime) call(fn reflect.Value) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("script panic: %v", rec)
		}
	}()
	fn.Call(nil)
	return nil
}

func (r *Runtime) fail(assetID string, stage string, err error) {
	r.log.Error().Err(err).Str("asset", assetID).Str("stage", stage).Msg("code asset disabled")
	if r.report != nil {
		r.report(assetID, stage, err)
	}
}

// blocked packages are withheld from the script sandbox.
var blocked = []string{
	"os/os",
	"os/exec/exec",
	"os/signal/signal",
	"net/net",
	"net/http/http",
	"net/http/httptest/httptest",
	"syscall/syscall",
	"plugin/plugin",
	"runtime/debug/debug",
}

func sandboxSymbols() interp.Exports {
	out := make(interp.Exports, len(stdlib.Symbols))
	for path, symbols := range stdlib.Symbols {
		out[path] = symbols
	}
	for _, path := range blocked {
		delete(out, path)
	}
	return out
}
