package value

// Cell is a shared mutable box around one value. Closures capture
// enclosing variables as cells, so the defining scope and every
// capturing closure observe the same storage: a write through any
// holder is visible through all of them, even after the defining
// scope has returned.
type Cell struct {
	V Value
}

// NewCell boxes a value.
func NewCell(v Value) *Cell {
	return &Cell{V: v}
}

// Cells appear on the VM stack in the slots of captured locals, so
// they satisfy Value, but they are never visible to user code: reads
// and writes go through the cell transparently.
func (*Cell) value() {}

func (c *Cell) String() string {
	return "cell(" + c.V.String() + ")"
}

// Get reads the cell.
func (c *Cell) Get() Value { return c.V }

// Set writes the cell.
func (c *Cell) Set(v Value) { c.V = v }
