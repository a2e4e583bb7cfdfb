package loader

import "github.com/weenafk/stabilise/server/world"

// LoaderStep runs once per region load, after the base document has been
// applied and before the region is offered to the generator. Steps run in
// registration order and are expected to be registered during program
// startup, before any Loader begins serving requests.
type LoaderStep func(pos world.RegionPos, r *world.Region, doc *document)

// SaverStep runs once per region save, after the base document has been
// populated from the live region's tiles/walls/light and before it is
// written to disk.
type SaverStep func(pos world.RegionPos, r *world.Region, doc *document)

var (
	loaderSteps []LoaderStep
	saverSteps  []SaverStep
)

// RegisterLoaderStep adds step to the bootstrap-time loader pipeline. It is
// not safe to call once a Loader has begun serving requests.
func RegisterLoaderStep(step LoaderStep) {
	loaderSteps = append(loaderSteps, step)
}

// RegisterSaverStep adds step to the bootstrap-time saver pipeline. It is
// not safe to call once a Loader has begun serving requests.
func RegisterSaverStep(step SaverStep) {
	saverSteps = append(saverSteps, step)
}

func runLoaderSteps(pos world.RegionPos, r *world.Region, doc *document) {
	for _, step := range loaderSteps {
		step(pos, r, doc)
	}
}

func runSaverSteps(pos world.RegionPos, r *world.Region, doc *document) {
	for _, step := range saverSteps {
		step(pos, r, doc)
	}
}
