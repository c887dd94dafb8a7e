package bridge

import (
	"fmt"

	"github.com/bryanchriswhite/RiverLayout/pkg/layout"
)

// session is the river_layout_v3 object of one output.
type session struct {
	handle LayoutHandle
	// output is the output name at the time the session was created.
	output string
}

// HandleNamespaceInUse aborts the run: another client owns the namespace.
func (b *Bridge) HandleNamespaceInUse(h LayoutHandle) error {
	o, err := b.sessionOwner(h)
	if err != nil {
		return err
	}
	b.log.Error().
		Str("output", o.session.output).
		Str("namespace", b.namespace).
		Msg("Namespace is in use")
	return &NamespaceInUseError{Namespace: b.namespace}
}

// HandleUserCommandTags stores the tags the next user command applies to.
func (b *Bridge) HandleUserCommandTags(h LayoutHandle, tags uint32) error {
	if _, err := b.sessionOwner(h); err != nil {
		return err
	}
	b.tags = &tags
	return nil
}

// HandleUserCommand forwards a user command to the generator. A failing
// command is logged and otherwise ignored.
func (b *Bridge) HandleUserCommand(h LayoutHandle, command string) error {
	o, err := b.sessionOwner(h)
	if err != nil {
		return err
	}

	var tags *uint32
	if b.tags != nil {
		t := *b.tags
		tags = &t
	}

	if err := b.gen.UserCommand(command, tags, o.session.output); err != nil {
		b.log.Warn().
			Err(err).
			Str("output", o.session.output).
			Str("command", command).
			Msg("Layout command failed")
		b.emit(Event{
			Type:         EventCommandFailed,
			RegistryName: o.registryName,
			Output:       o.session.output,
			Command:      command,
			Error:        err.Error(),
		})
		return nil
	}

	b.log.Debug().
		Str("output", o.session.output).
		Str("command", command).
		Msg("Layout command handled")
	return nil
}

// HandleLayoutDemand generates a layout and sends it back under the
// demand's serial: one push_view_dimensions per view, then one commit.
// Nothing is sent if the generator fails, returns nil or returns the wrong
// number of views.
func (b *Bridge) HandleLayoutDemand(h LayoutHandle, d Demand) error {
	o, err := b.sessionOwner(h)
	if err != nil {
		return err
	}
	out := o.session.output

	generated, err := b.gen.GenerateLayout(d.ViewCount, d.UsableWidth, d.UsableHeight, d.Tags, out)
	if err != nil {
		return &LayoutError{Err: err}
	}
	if generated == nil {
		return fmt.Errorf("%w (output %s, serial %d)", ErrNilLayout, out, d.Serial)
	}
	if got := len(generated.Views); got != int(d.ViewCount) {
		return &InvalidLayoutError{Want: int(d.ViewCount), Got: got}
	}

	for _, r := range generated.Views {
		if err := h.PushViewDimensions(r.X, r.Y, r.Width, r.Height, d.Serial); err != nil {
			return fmt.Errorf("failed to push view dimensions: %w", err)
		}
	}
	if err := h.Commit(generated.Name, d.Serial); err != nil {
		return fmt.Errorf("failed to commit layout: %w", err)
	}

	b.log.Debug().
		Str("output", out).
		Uint32("serial", d.Serial).
		Uint32("views", d.ViewCount).
		Str("layout", generated.Name).
		Msg("Layout committed")

	if len(b.observers) > 0 {
		committed := &layout.GeneratedLayout{
			Name:  generated.Name,
			Views: append([]layout.Rectangle(nil), generated.Views...),
		}
		b.emit(Event{
			Type:         EventLayoutCommitted,
			RegistryName: o.registryName,
			Output:       out,
			Serial:       d.Serial,
			Tags:         d.Tags,
			Layout:       committed,
		})
	}
	return nil
}

// sessionOwner finds the output owning the layout object h.
func (b *Bridge) sessionOwner(h LayoutHandle) (*output, error) {
	for _, o := range b.outputs {
		if o.session != nil && o.session.handle == h {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: event for unknown layout object", ErrInconsistent)
}
