package gate

// CountedSet holds the IDs of tracks that have already been attributed to a crossing
type CountedSet struct {
	ids map[int64]struct{}
}

func NewCountedSet() *CountedSet {
	return &CountedSet{ids: map[int64]struct{}{}}
}

func (c *CountedSet) Add(id int64) {
	c.ids[id] = struct{}{}
}

func (c *CountedSet) Contains(id int64) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *CountedSet) Len() int {
	return len(c.ids)
}
