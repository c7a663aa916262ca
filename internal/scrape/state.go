package scrape

import "sync/atomic"

// Counters tracks running totals for one crawl or update run. All methods
// are safe for concurrent workers.
type Counters struct {
	products atomic.Int64
	specs    atomic.Int64
	boards   atomic.Int64
	reviews  atomic.Int64
	updated  atomic.Int64
	errors   atomic.Int64
	progress atomic.Int32
}

func (c *Counters) AddProduct()       { c.products.Add(1) }
func (c *Counters) AddSpecs(n int)    { c.specs.Add(int64(n)) }
func (c *Counters) AddBoard()         { c.boards.Add(1) }
func (c *Counters) AddReview()        { c.reviews.Add(1) }
func (c *Counters) AddUpdated(n int)  { c.updated.Add(int64(n)) }
func (c *Counters) AddError()         { c.errors.Add(1) }
func (c *Counters) AddErrors(n int)   { c.errors.Add(int64(n)) }
func (c *Counters) SetProgress(p int) { c.progress.Store(int32(p)) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Products int `json:"products"`
	Specs    int `json:"specs"`
	Boards   int `json:"boards"`
	Reviews  int `json:"reviews"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
	Progress int `json:"progress"`
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Products: int(c.products.Load()),
		Specs:    int(c.specs.Load()),
		Boards:   int(c.boards.Load()),
		Reviews:  int(c.reviews.Load()),
		Updated:  int(c.updated.Load()),
		Errors:   int(c.errors.Load()),
		Progress: int(c.progress.Load()),
	}
}
