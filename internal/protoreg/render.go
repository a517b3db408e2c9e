package protoreg

import (
	"fmt"
	"io"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render prints every loaded file as .proto source, each preceded by a
// comment line naming its path.
func Render(r *Registry, w io.Writer) error {
	pp := protoprint.Printer{}
	for _, fd := range r.Files() {
		if _, err := fmt.Fprintf(w, "// %s\n", fd.Path()); err != nil {
			return err
		}
		if err := pp.PrintProtoFile(fd, w); err != nil {
			return fmt.Errorf("print %s: %w", fd.Path(), err)
		}
	}
	return nil
}
