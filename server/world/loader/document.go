package loader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/weenafk/stabilise/server/world"
)

// document is the on-disk representation of a single Region. It is encoded
// as gzip-compressed little-endian NBT, the same tagged-binary convention
// the wider ecosystem uses for Minecraft-shaped world data, chosen here
// because the region/slice/tile-entity shape this engine persists is a
// direct structural analogue.
type document struct {
	Generated  bool          `nbt:"generated"`
	Structures []structureDoc `nbt:"structures"`
	Slices     []sliceDoc     `nbt:"slices"`
}

type structureDoc struct {
	ID      string `nbt:"id"`
	Name    string `nbt:"name"`
	SliceX  int32  `nbt:"slice_x"`
	SliceY  int32  `nbt:"slice_y"`
	TileX   byte   `nbt:"tile_x"`
	TileY   byte   `nbt:"tile_y"`
	OffsetX int32  `nbt:"offset_x"`
	OffsetY int32  `nbt:"offset_y"`
}

// sliceDoc stores one Slice's dense tile/wall/light arrays, keyed by its
// region-local slice coordinate. Tile-entities are not included.
type sliceDoc struct {
	LocalX int32    `nbt:"x"`
	LocalY int32    `nbt:"y"`
	Tiles  []uint32 `nbt:"tiles"`
	Walls  []uint32 `nbt:"walls"`
	Light  []byte   `nbt:"light"`
}

// encodeDocument snapshots r into a document ready for disk.
func encodeDocument(r *world.Region) *document {
	doc := &document{
		Generated: r.Generated(),
		Slices:    make([]sliceDoc, 0, world.RegionSize*world.RegionSize),
	}
	for _, qs := range r.Structures() {
		doc.Structures = append(doc.Structures, structureDoc{
			ID:      qs.ID.String(),
			Name:    qs.Name,
			SliceX:  qs.SliceX,
			SliceY:  qs.SliceY,
			TileX:   qs.TileX,
			TileY:   qs.TileY,
			OffsetX: qs.OffsetX,
			OffsetY: qs.OffsetY,
		})
	}
	for y := int32(0); y < world.RegionSize; y++ {
		for x := int32(0); x < world.RegionSize; x++ {
			s := r.Slice(x, y)
			sd := sliceDoc{
				LocalX: x,
				LocalY: y,
				Tiles:  make([]uint32, world.SliceSize*world.SliceSize),
				Walls:  make([]uint32, world.SliceSize*world.SliceSize),
				Light:  make([]byte, world.SliceSize*world.SliceSize),
			}
			for ly := uint8(0); ly < world.SliceSize; ly++ {
				for lx := uint8(0); lx < world.SliceSize; lx++ {
					i := int(ly)*world.SliceSize + int(lx)
					sd.Tiles[i] = s.Tile(lx, ly)
					sd.Walls[i] = s.Wall(lx, ly)
					sd.Light[i] = s.Light(lx, ly)
				}
			}
			doc.Slices = append(doc.Slices, sd)
		}
	}
	return doc
}

// applyDocument writes doc's contents back into r. Tile-entities are not
// round-tripped by the default codec: spec §4.5 treats their encoding as an
// external collaborator's concern, reached through registered loader/saver
// steps rather than the base document shape.
func applyDocument(doc *document, r *world.Region) {
	for _, sd := range doc.Slices {
		s := r.Slice(sd.LocalX, sd.LocalY)
		for ly := uint8(0); ly < world.SliceSize; ly++ {
			for lx := uint8(0); lx < world.SliceSize; lx++ {
				i := int(ly)*world.SliceSize + int(lx)
				s.SetTile(lx, ly, sd.Tiles[i])
				s.SetWall(lx, ly, sd.Walls[i])
				s.SetLight(lx, ly, sd.Light[i])
			}
		}
	}
	for _, sd := range doc.Structures {
		id, _ := uuid.Parse(sd.ID)
		r.AddStructure(world.QueuedStructure{
			ID:      id,
			Name:    sd.Name,
			SliceX:  sd.SliceX,
			SliceY:  sd.SliceY,
			TileX:   sd.TileX,
			TileY:   sd.TileY,
			OffsetX: sd.OffsetX,
			OffsetY: sd.OffsetY,
		})
	}
}

// writeDocument gzip-compresses and NBT-encodes doc to w.
func writeDocument(w io.Writer, doc *document) error {
	gz := gzip.NewWriter(w)
	enc := nbt.NewEncoderWithEncoding(gz, nbt.LittleEndian)
	if err := enc.Encode(doc); err != nil {
		gz.Close()
		return fmt.Errorf("encode region document: %w", err)
	}
	return gz.Close()
}

// readDocument decompresses and NBT-decodes a document from r.
func readDocument(r io.Reader) (*document, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open gzip stream: %v", world.ErrRegionCorrupt, err)
	}
	defer gz.Close()
	dec := nbt.NewDecoderWithEncoding(gz, nbt.LittleEndian)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", world.ErrRegionCorrupt, err)
	}
	return &doc, nil
}

// digest returns a stable content hash of doc, for comparing two encoded
// documents (identical state encodes to identical bytes). No test in this
// package calls it.
func digest(doc *document) (uint64, error) {
	var buf bytes.Buffer
	enc := nbt.NewEncoderWithEncoding(&buf, nbt.LittleEndian)
	if err := enc.Encode(doc); err != nil {
		return 0, err
	}
	return xxhash.Sum64(buf.Bytes()), nil
}
