package vm

import (
	"github.com/jmllang/jml/compiler"
	"github.com/jmllang/jml/object"
)

// importModule returns the module with the given dotted name, loading it
// through the importer on first use. A module is cached before its body runs,
// so circular imports see the partially initialized namespace.
func (vm *VirtualMachine) importModule(name, bind *object.String) (*object.Module, error) {
	if v, ok := vm.modules.Get(name); ok {
		m, _ := v.AsObject().(*object.Module)
		return m, nil
	}
	if vm.importer == nil {
		return nil, vm.runtimeError("Could not import module '%s'.", name.Chars)
	}
	source, err := vm.importer.Import(name.Chars)
	if err != nil {
		return nil, vm.runtimeError("Could not import module '%s'.", name.Chars).WithCause(err)
	}

	h := vm.heap
	m := h.NewModule(name.Chars)
	h.Exempt(object.Obj(m))
	h.MapSet(vm.modules, m.Name, object.Obj(m))
	h.Unexempt()

	fn, err := compiler.Compile(h, source,
		compiler.WithModule(m),
		compiler.WithFilename(name.Chars))
	if err != nil {
		vm.modules.Delete(m.Name)
		vm.log.Debug().Str("module", name.Chars).Err(err).Msg("import_failed")
		return nil, vm.runtimeError("Could not import module '%s'.", name.Chars).WithCause(err)
	}
	h.Exempt(object.Obj(fn))
	closure := h.NewClosure(fn)
	h.Unexempt()
	if _, err := vm.call(object.Obj(closure), nil); err != nil {
		vm.modules.Delete(m.Name)
		vm.log.Debug().Str("module", name.Chars).Err(err).Msg("import_failed")
		return nil, err
	}

	event := vm.log.Debug().Str("module", name.Chars)
	if bind != nil {
		event = event.Str("bind", bind.Chars)
	}
	event.Msg("import")
	return m, nil
}

// importWildcard copies every public name of m into globals. Names starting
// with an underscore stay private to the module.
func (vm *VirtualMachine) importWildcard(m *object.Module, globals *object.Map) {
	m.Globals.Each(func(key *object.String, value object.Value) bool {
		if len(key.Chars) > 0 && key.Chars[0] == '_' {
			return true
		}
		vm.heap.MapSet(globals, key, value)
		return true
	})
}
