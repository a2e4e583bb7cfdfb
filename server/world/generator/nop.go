// Package generator provides concrete world.Generator implementations.
package generator

import "github.com/weenafk/stabilise/server/world"

// Nop is the reference world.Generator: it leaves every slice at the
// Region's background tile id and queues no structures. Useful for tests
// and for worlds that load exclusively from a pre-populated store.
type Nop struct{}

// Generate implements world.Generator. It is a no-op: newRegion already
// filled every slice with the configured background tile id.
func (Nop) Generate(world.RegionPos, *world.Region, int64) {}
