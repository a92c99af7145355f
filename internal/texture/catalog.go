package texture

import "fmt"

// Handle is an opaque reference to a texture owned by the rendering side.
// The scheduler never touches pixel data; it only routes handles into frames.
type Handle struct {
	Name      string
	Frequency int
}

func (h Handle) IsBlank() bool {
	return h.Name == "blank"
}

func (h Handle) String() string {
	if h.IsBlank() {
		return "blank"
	}
	return fmt.Sprintf("%s(freq=%d)", h.Name, h.Frequency)
}

// Catalog resolves texture references coming from switch requests. Resolution
// never fails: unknown frequencies fall back to the catalog default and Blank
// is always available, so a bad request can never leave the display without
// something safe to show.
type Catalog interface {
	Blank() Handle
	Resolve(freq int) Handle
	DefaultFrequency() int
}

// StaticCatalog is a fixed table of grating handles keyed by spatial
// frequency, mirroring the texture dictionaries the display process loads at
// startup.
type StaticCatalog struct {
	gratings    map[int]Handle
	defaultFreq int
}

func NewStaticCatalog(frequencies []int, defaultFreq int) *StaticCatalog {
	c := &StaticCatalog{
		gratings:    make(map[int]Handle, len(frequencies)),
		defaultFreq: defaultFreq,
	}
	for _, f := range frequencies {
		c.gratings[f] = Handle{Name: "grating", Frequency: f}
	}
	if _, ok := c.gratings[defaultFreq]; !ok {
		c.gratings[defaultFreq] = Handle{Name: "grating", Frequency: defaultFreq}
	}
	return c
}

func (c *StaticCatalog) Blank() Handle {
	return Handle{Name: "blank"}
}

func (c *StaticCatalog) Resolve(freq int) Handle {
	if h, ok := c.gratings[freq]; ok {
		return h
	}
	return c.gratings[c.defaultFreq]
}

func (c *StaticCatalog) DefaultFrequency() int {
	return c.defaultFreq
}
