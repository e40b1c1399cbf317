package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// maxConsoleEntries bounds the console history kept per page.
const maxConsoleEntries = 200

// ConsoleEntry is one console.* call made by content.
type ConsoleEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// scriptContext is the JavaScript environment of one loaded document.
// Navigation replaces it wholesale.
type scriptContext struct {
	vm      *goja.Runtime
	timeout time.Duration
	log     *zap.Logger

	doc       *Document
	emit      func(bridge.ScriptEvent)
	console   []ConsoleEntry
	listeners map[string][]goja.Callable
}

func newScriptContext(cfg Config, log *zap.Logger, emit func(bridge.ScriptEvent)) *scriptContext {
	s := &scriptContext{
		vm:        goja.New(),
		timeout:   cfg.ScriptTimeout,
		log:       log,
		emit:      emit,
		listeners: make(map[string][]goja.Callable),
	}
	s.vm.SetMaxCallStackSize(1024)
	s.setupGlobals(cfg.Console)
	return s
}

// setupGlobals removes host access and installs the engine surface.
func (s *scriptContext) setupGlobals(console bool) {
	vm := s.vm
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	if console {
		obj := vm.NewObject()
		obj.Set("log", s.makeConsoleFunc("log"))
		obj.Set("info", s.makeConsoleFunc("info"))
		obj.Set("warn", s.makeConsoleFunc("warn"))
		obj.Set("error", s.makeConsoleFunc("error"))
		obj.Set("debug", s.makeConsoleFunc("debug"))
		vm.Set("console", obj)
	}

	// Timers never fire.
	noop := func(goja.FunctionCall) goja.Value { return vm.ToValue(0) }
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)
	vm.Set("clearTimeout", noop)
	vm.Set("clearInterval", noop)

	engine := vm.NewObject()
	engine.Set("emit", s.emitFunc)
	vm.Set("engine", engine)

	vm.Set("addEventListener", s.addListener)
	vm.Set("removeEventListener", s.removeListener)
	vm.Set("window", vm.GlobalObject())
}

func (s *scriptContext) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		if len(s.console) == maxConsoleEntries {
			s.console = s.console[1:]
		}
		s.console = append(s.console, ConsoleEntry{Level: level, Message: msg, Time: time.Now()})
		s.log.Debug("console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

func (s *scriptContext) emitFunc(call goja.FunctionCall) goja.Value {
	name := call.Argument(0)
	if goja.IsUndefined(name) || goja.IsNull(name) || name.String() == "" {
		panic(s.vm.NewTypeError("engine.emit: event name required"))
	}
	s.emit(bridge.ScriptEvent{Name: name.String(), Payload: s.payload(call.Argument(1))})
	return goja.Undefined()
}

// payload passes strings through and encodes everything else as JSON.
func (s *scriptContext) payload(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if str, ok := v.Export().(string); ok {
		return str
	}
	if out, err := sonic.MarshalString(v.Export()); err == nil {
		return out
	}
	return v.String()
}

func (s *scriptContext) addListener(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0).String()
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		return goja.Undefined()
	}
	s.listeners[typ] = append(s.listeners[typ], fn)
	return goja.Undefined()
}

// removeListener drops every listener of the given type; goja callables are
// not comparable.
func (s *scriptContext) removeListener(call goja.FunctionCall) goja.Value {
	delete(s.listeners, call.Argument(0).String())
	return goja.Undefined()
}

// guarded runs fn with the evaluation timeout armed.
func (s *scriptContext) guarded(fn func() error) error {
	var (
		mu       sync.Mutex
		finished bool
	)
	timer := time.AfterFunc(s.timeout, func() {
		mu.Lock()
		defer mu.Unlock()
		if !finished {
			s.vm.Interrupt("execution timeout exceeded")
		}
	})
	defer func() {
		timer.Stop()
		mu.Lock()
		finished = true
		mu.Unlock()
		s.vm.ClearInterrupt()
	}()
	return fn()
}

func (s *scriptContext) run(source string) (goja.Value, error) {
	var val goja.Value
	err := s.guarded(func() error {
		var err error
		val, err = s.vm.RunString(source)
		return err
	})
	return val, err
}

// dispatch calls every listener for typ. Listener failures land in the
// console and do not stop later listeners.
func (s *scriptContext) dispatch(typ string, event map[string]interface{}) int {
	fns := s.listeners[typ]
	if len(fns) == 0 {
		return 0
	}

	event["type"] = typ
	event["preventDefault"] = func() {}
	event["stopPropagation"] = func() {}
	arg := s.vm.ToValue(event)

	for _, fn := range fns {
		err := s.guarded(func() error {
			_, err := fn(goja.Undefined(), arg)
			return err
		})
		if err != nil {
			s.consoleError(fmt.Sprintf("%s listener: %v", typ, err))
		}
	}
	return len(fns)
}

func (s *scriptContext) consoleError(msg string) {
	if len(s.console) == maxConsoleEntries {
		s.console = s.console[1:]
	}
	s.console = append(s.console, ConsoleEntry{Level: "error", Message: msg, Time: time.Now()})
	s.log.Debug("script error", zap.String("message", msg))
}

// stringify converts an evaluation result for the host. undefined and null
// produce no value; objects are encoded as JSON.
func (s *scriptContext) stringify(v goja.Value) (string, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", false
	}

	obj, isObject := v.(*goja.Object)
	if !isObject {
		return v.String(), true
	}
	if _, isFunc := goja.AssertFunction(obj); isFunc {
		return obj.String(), true
	}
	if out, err := sonic.MarshalString(obj.Export()); err == nil {
		return out, true
	}
	return obj.String(), true
}

// bindDocument exposes doc as the global document object.
func (s *scriptContext) bindDocument(doc *Document) {
	s.doc = doc
	vm := s.vm

	document := vm.NewObject()
	document.Set("URL", doc.URL)
	document.Set("contentType", doc.MIME)
	_ = document.DefineAccessorProperty("title",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(doc.Title()) }),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			doc.SetTitle(call.Argument(0).String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	document.Set("querySelector", func(sel string) goja.Value {
		return s.element(doc.Query(sel).First())
	})
	document.Set("querySelectorAll", func(sel string) []goja.Value {
		return s.elements(doc.Query(sel))
	})
	document.Set("getElementById", func(elemID string) goja.Value {
		return s.element(doc.ByID(elemID))
	})
	document.Set("getElementsByTagName", func(tag string) []goja.Value {
		return s.elements(doc.Query(tag))
	})
	document.Set("xpath", func(expr string) []goja.Value {
		sel, err := doc.XPath(expr)
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		return s.elements(sel)
	})
	document.Set("addEventListener", s.addListener)
	document.Set("removeEventListener", s.removeListener)
	document.Set("body", s.element(doc.Query("body").First()))

	vm.Set("document", document)
	vm.Set("location", map[string]interface{}{"href": doc.URL})
}

func (s *scriptContext) elements(sel *goquery.Selection) []goja.Value {
	out := make([]goja.Value, 0, sel.Length())
	sel.Each(func(_ int, el *goquery.Selection) {
		out = append(out, s.element(el))
	})
	return out
}

// element wraps a single node. Writes mark the document dirty.
func (s *scriptContext) element(sel *goquery.Selection) goja.Value {
	if sel.Length() == 0 {
		return goja.Null()
	}
	vm, doc := s.vm, s.doc

	el := vm.NewObject()
	el.Set("tagName", strings.ToUpper(goquery.NodeName(sel)))
	el.Set("id", sel.AttrOr("id", ""))
	el.Set("className", sel.AttrOr("class", ""))

	_ = el.DefineAccessorProperty("textContent",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(sel.Text()) }),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			sel.SetText(call.Argument(0).String())
			doc.touch()
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = el.DefineAccessorProperty("innerHTML",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			markup, _ := sel.Html()
			return vm.ToValue(markup)
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			sel.SetHtml(call.Argument(0).String())
			doc.touch()
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	el.Set("getAttribute", func(name string) goja.Value {
		v, ok := sel.Attr(name)
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	el.Set("setAttribute", func(name, value string) {
		sel.SetAttr(name, value)
		doc.touch()
	})
	el.Set("removeAttribute", func(name string) {
		sel.RemoveAttr(name)
		doc.touch()
	})
	el.Set("querySelector", func(child string) goja.Value {
		return s.element(sel.Find(child).First())
	})
	el.Set("querySelectorAll", func(child string) []goja.Value {
		return s.elements(sel.Find(child))
	})
	el.Set("remove", func() {
		sel.Remove()
		doc.touch()
	})
	return el
}

func (s *scriptContext) consoleHistory() []ConsoleEntry {
	out := make([]ConsoleEntry, len(s.console))
	copy(out, s.console)
	return out
}
