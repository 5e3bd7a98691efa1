package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// Dump writes an indented rendering of the change tree to w.
func Dump(w io.Writer, c *Change) error {
	if c == nil {
		_, err := io.WriteString(w, "no changes\n")
		return err
	}

	var err error
	c.Walk(func(ch *Change, depth int) bool {
		if err != nil {
			return false
		}
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), describe(ch))
		return true
	})
	return err
}

// Format returns the Dump rendering of c.
func Format(c *Change) string {
	var sb strings.Builder
	_ = Dump(&sb, c)
	return sb.String()
}

func describe(c *Change) string {
	switch c.kind {
	case SimpleValue:
		return fmt.Sprintf("%s %s -> %s", c.kind, label(c.Old), label(c.New))
	case ValueAdded:
		return fmt.Sprintf("%s %s", c.kind, label(c.New))
	case ValueRemoved:
		return fmt.Sprintf("%s %s", c.kind, label(c.Old))
	case ObjectModified:
		return fmt.Sprintf("%s %s", c.kind, label(c.New))
	case ObjectAttrModified:
		return fmt.Sprintf("%s %s", c.kind, c.Attr)
	case ListItemAdded:
		return fmt.Sprintf("%s [%d] %s after %s", c.kind, c.Index, label(c.New), prevLabel(c.Prev))
	case ListItemRemoved:
		return fmt.Sprintf("%s [%d] %s", c.kind, c.Index, label(c.Old))
	case ListItemModified:
		return fmt.Sprintf("%s [%d] %s", c.kind, c.Index, label(c.New))
	case ListItemOrderChanged:
		return fmt.Sprintf("%s [%d -> %d] %s after %s", c.kind, c.OldIndex, c.Index, label(c.New), prevLabel(c.Prev))
	case DictItemAdded:
		return fmt.Sprintf("%s %s: %s", c.kind, c.Key, label(c.New))
	case DictItemRemoved:
		return fmt.Sprintf("%s %s: %s", c.kind, c.Key, label(c.Old))
	case DictItemModified:
		return fmt.Sprintf("%s %s", c.kind, c.Key)
	default:
		return c.kind.String()
	}
}

// label renders a value on one line. Objects are shown by class and name.
func label(v grt.Value) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case *grt.Object:
		if x.HasMember("name") {
			return fmt.Sprintf("%s '%s'", x.ClassName(), x.StringMember("name"))
		}
		return fmt.Sprintf("%s <%s>", x.ClassName(), x.ID())
	case *grt.List, *grt.Dict:
		return x.String()
	default:
		return grt.DebugString(v, "")
	}
}

func prevLabel(v grt.Value) string {
	if v == nil {
		return "start"
	}
	return label(v)
}
