package bridge

import (
	"fmt"
	"slices"
)

// output is one wl_output the compositor has advertised.
type output struct {
	handle       OutputHandle
	registryName uint32
	version      uint32
	// name is empty until the compositor announces it.
	name    string
	session *session
}

// OutputInfo is a read-only view of a tracked output.
type OutputInfo struct {
	RegistryName uint32 `json:"registry_name"`
	Version      uint32 `json:"version"`
	Name         string `json:"name,omitempty"`
	HasSession   bool   `json:"has_session"`
}

var _ Handler = (*Bridge)(nil)

// HandleGlobal binds newly advertised outputs. Globals seen during the
// handshake are only recorded; Start binds them.
func (b *Bridge) HandleGlobal(name uint32, iface string, version uint32) error {
	b.globals[name] = iface

	if !b.ready {
		b.initial = append(b.initial, global{name: name, iface: iface, version: version})
		return nil
	}

	if iface != OutputInterface {
		return nil
	}
	return b.addOutput(name, version)
}

// HandleGlobalRemove tears down the output with the given registry name.
// Removal of non-output globals is ignored; removal of a name that was
// never advertised is an error.
func (b *Bridge) HandleGlobalRemove(name uint32) error {
	iface, known := b.globals[name]
	if !known {
		return fmt.Errorf("%w: compositor removed unknown global %d", ErrInconsistent, name)
	}
	delete(b.globals, name)

	if !b.ready {
		b.initial = slices.DeleteFunc(b.initial, func(g global) bool { return g.name == name })
		return nil
	}

	switch iface {
	case OutputInterface:
	case LayoutManagerInterface:
		b.log.Warn().Uint32("registry_name", name).Msg("Layout manager global removed")
		return nil
	default:
		return nil
	}

	idx := slices.IndexFunc(b.outputs, func(o *output) bool { return o.registryName == name })
	if idx < 0 {
		return fmt.Errorf("%w: output %d was never bound", ErrInconsistent, name)
	}
	o := b.outputs[idx]
	b.outputs = slices.Delete(b.outputs, idx, idx+1)

	return b.destroyOutput(o)
}

// HandleOutputName records the output's name and opens its layout session.
// Repeated names for an output that already has a session are ignored.
func (b *Bridge) HandleOutputName(handle OutputHandle, name string) error {
	o := b.outputByHandle(handle)
	if o == nil {
		return fmt.Errorf("%w: name event for unknown output", ErrInconsistent)
	}
	if o.session != nil {
		b.log.Debug().
			Uint32("registry_name", o.registryName).
			Str("output", o.session.output).
			Msg("Ignoring name for output with a layout session")
		return nil
	}

	o.name = name
	lh, err := b.manager.GetLayout(o.handle, b.namespace)
	if err != nil {
		return fmt.Errorf("failed to create layout for output %s: %w", name, err)
	}
	o.session = &session{handle: lh, output: name}

	b.log.Info().
		Uint32("registry_name", o.registryName).
		Str("output", name).
		Str("namespace", b.namespace).
		Msg("Layout session created")
	b.emit(Event{Type: EventSessionCreated, RegistryName: o.registryName, Output: name})
	return nil
}

// Outputs returns a snapshot of the tracked outputs.
func (b *Bridge) Outputs() []OutputInfo {
	infos := make([]OutputInfo, 0, len(b.outputs))
	for _, o := range b.outputs {
		infos = append(infos, OutputInfo{
			RegistryName: o.registryName,
			Version:      o.version,
			Name:         o.name,
			HasSession:   o.session != nil,
		})
	}
	return infos
}

func (b *Bridge) addOutput(name, advertised uint32) error {
	version := min(advertised, maxOutputVersion)
	handle, err := b.conn.BindOutput(name, version)
	if err != nil {
		return fmt.Errorf("failed to bind output %d: %w", name, err)
	}
	b.outputs = append(b.outputs, &output{
		handle:       handle,
		registryName: name,
		version:      version,
	})

	ev := b.log.Info()
	if version < outputNameSince {
		ev = b.log.Warn().Str("reason", "wl_output version too old to announce names, no layout will be created")
	}
	ev.Uint32("registry_name", name).Uint32("version", version).Msg("Output added")

	b.emit(Event{Type: EventOutputAdded, RegistryName: name})
	return nil
}

// destroyOutput destroys the session before releasing the output itself.
func (b *Bridge) destroyOutput(o *output) error {
	if o.session != nil {
		if err := o.session.handle.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy layout for output %s: %w", o.session.output, err)
		}
		o.session = nil
	}

	if o.version >= outputReleaseSince {
		if err := o.handle.Release(); err != nil {
			return fmt.Errorf("failed to release output %d: %w", o.registryName, err)
		}
	} else {
		o.handle.Forget()
	}

	b.log.Info().
		Uint32("registry_name", o.registryName).
		Str("output", o.name).
		Msg("Output removed")
	b.emit(Event{Type: EventOutputRemoved, RegistryName: o.registryName, Output: o.name})
	return nil
}

func (b *Bridge) outputByHandle(h OutputHandle) *output {
	for _, o := range b.outputs {
		if o.handle == h {
			return o
		}
	}
	return nil
}
