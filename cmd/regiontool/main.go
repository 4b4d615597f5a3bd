// Command regiontool inspects and compacts region-format world storage.
//
// Usage:
//
//	regiontool inspect -dir world [-format sectors] -x 0 -z 0
//	regiontool compact -dir world [-format sectors]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/region"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dir := fs.String("dir", "world", "world directory")
	formatName := fs.String("format", "sectors", "region format (sectors or log)")
	x := fs.Int("x", 0, "column X coordinate (inspect)")
	z := fs.Int("z", 0, "column Z coordinate (inspect)")
	_ = fs.Parse(args)

	format, ok := region.FormatByName(*formatName)
	if !ok {
		fail("unknown region format %q", *formatName)
	}
	p, err := region.NewProvider(*dir, region.Config{Format: format})
	if err != nil {
		fail("%v", err)
	}
	defer p.Close()

	switch cmd {
	case "inspect":
		inspect(p, world.ChunkPos{int32(*x), int32(*z)})
	case "compact":
		compact(p)
	default:
		usage()
	}
}

func inspect(p *region.Provider, pos world.ChunkPos) {
	col, err := p.LoadColumn(pos)
	if err != nil {
		fail("load column %v: %v", pos, err)
	}
	fmt.Printf("column %v\n", pos)
	fmt.Printf("  status:         %v\n", col.Status)
	fmt.Printf("  block entities: %d\n", len(col.BlockEntities))
	fmt.Printf("  entities:       %d\n", len(col.Entities))
	fmt.Printf("  pending ticks:  %d\n", len(col.Ticks))

	nonEmpty := 0
	for _, sub := range col.Chunk.Sub() {
		if !sub.Empty() {
			nonEmpty++
		}
	}
	fmt.Printf("  sub chunks:     %d non-empty of %d\n", nonEmpty, len(col.Chunk.Sub()))
	fmt.Printf("  highest block:  %d (at column centre)\n", col.Chunk.HighestBlock(8, 8))
	if n := p.Store().Corruptions(); n > 0 {
		fmt.Printf("  corrupt records encountered: %d\n", n)
	}
}

func compact(p *region.Provider) {
	if err := p.Store().Defragment(); err != nil {
		fail("compact: %v", err)
	}
	fmt.Println("region files compacted")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: regiontool <inspect|compact> [flags]\n")
	os.Exit(2)
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "regiontool: "+format+"\n", a...)
	os.Exit(1)
}
